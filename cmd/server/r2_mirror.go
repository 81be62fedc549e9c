package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"worldbox.ai/internal/persistence/r2s3"
	"worldbox.ai/pkg/logger"
)

// buildMirror returns nil unless WB_R2_MIRROR is true.
func buildMirror(dataDir string) (*r2s3.Mirror, error) {
	if !envBool("WB_R2_MIRROR", false) {
		return nil, nil
	}
	endpoint := strings.TrimSpace(os.Getenv("WB_R2_ENDPOINT"))
	bucket := strings.TrimSpace(os.Getenv("WB_R2_BUCKET"))
	key := strings.TrimSpace(os.Getenv("WB_R2_ACCESS_KEY_ID"))
	secret := strings.TrimSpace(os.Getenv("WB_R2_SECRET_ACCESS_KEY"))
	if endpoint == "" || bucket == "" || key == "" || secret == "" {
		return nil, fmt.Errorf("WB_R2_MIRROR=true needs WB_R2_ENDPOINT, WB_R2_BUCKET, WB_R2_ACCESS_KEY_ID and WB_R2_SECRET_ACCESS_KEY")
	}
	client, err := r2s3.New(endpoint, bucket, key, secret)
	if err != nil {
		return nil, err
	}
	return r2s3.NewMirror(client, dataDir, os.Getenv("WB_R2_PREFIX"), envInt("WB_R2_UPLOAD_WORKERS", 2), logger.Component("r2_mirror")), nil
}

func envBool(key string, def bool) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return def
	}
	return b
}

func envInt(key string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil || n <= 0 {
		return def
	}
	return n
}
