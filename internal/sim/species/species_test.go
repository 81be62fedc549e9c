package species

import "testing"

func TestBehaviorTableCoversEveryKind(t *testing.T) {
	for _, k := range Kinds() {
		b := BehaviorOf(k)
		if b.Territory <= 0 {
			t.Fatalf("%s: territory must be positive", k)
		}
		if TraitsOf(k).BaseSpeed <= 0 {
			t.Fatalf("%s: base speed must be positive", k)
		}
		for _, prey := range b.Hunts {
			if prey == k {
				t.Fatalf("%s hunts itself", k)
			}
		}
	}
}

func TestUnknownKindDefaults(t *testing.T) {
	k := Kind(200)
	b := BehaviorOf(k)
	if len(b.Hunts) != 0 || len(b.Fears) != 0 || b.Pack || b.Territory != DefaultTerritory {
		t.Fatalf("unexpected default behaviour: %+v", b)
	}
	if k.Known() {
		t.Fatalf("kind 200 must be unknown")
	}
}

func TestParseRoundTrip(t *testing.T) {
	for _, k := range Kinds() {
		got, err := Parse(k.String())
		if err != nil || got != k {
			t.Fatalf("parse %s: got %v err %v", k, got, err)
		}
	}
	if _, err := Parse("dragon"); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
}

func TestDeerFearsWolf(t *testing.T) {
	if !Fears(Deer, Wolf) {
		t.Fatalf("deer must fear wolves")
	}
	if !Hunts(Wolf, Deer) {
		t.Fatalf("wolves must hunt deer")
	}
	if TraitsOf(Deer).BaseSpeed*1.5 <= TraitsOf(Deer).BaseSpeed {
		t.Fatalf("flee boost must increase deer speed")
	}
}
