package config

import "fmt"

// StorageConfig selects where rendered QR images are kept.
type StorageConfig struct {
	Provider string              `yaml:"provider"`
	Local    *LocalStorageConfig `yaml:"local"`
	S3       *BucketConfig       `yaml:"s3"`
	GCS      *GCSConfig          `yaml:"gcs"`
}

type LocalStorageConfig struct {
	BasePath string `yaml:"base_path"`
	BaseURL  string `yaml:"base_url"`
}

type BucketConfig struct {
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
	CDNDomain string `yaml:"cdn_domain"`
}

type GCSConfig struct {
	Bucket          string `yaml:"bucket"`
	CredentialsFile string `yaml:"credentials_file"`
	CDNDomain       string `yaml:"cdn_domain"`
}

func (s *StorageConfig) validate() error {
	switch s.Provider {
	case "local":
		if s.Local.BasePath == "" {
			return fmt.Errorf("STORAGE_LOCAL_PATH is required for STORAGE_PROVIDER=local")
		}
	case "s3":
		if s.S3.Bucket == "" {
			return fmt.Errorf("AWS_S3_BUCKET is required for STORAGE_PROVIDER=s3")
		}
	case "gcs":
		if s.GCS.Bucket == "" {
			return fmt.Errorf("GCP_STORAGE_BUCKET is required for STORAGE_PROVIDER=gcs")
		}
	default:
		return fmt.Errorf("unknown STORAGE_PROVIDER %q", s.Provider)
	}
	return nil
}

func loadStorageConfig() *StorageConfig {
	return &StorageConfig{
		Provider: getEnv("STORAGE_PROVIDER", "local"),
		Local: &LocalStorageConfig{
			BasePath: getEnv("STORAGE_LOCAL_PATH", "./uploads"),
			BaseURL:  getEnv("STORAGE_LOCAL_URL", "http://localhost:8080/uploads"),
		},
		S3: &BucketConfig{
			Region:    getEnv("AWS_S3_REGION", "us-east-1"),
			Bucket:    getEnv("AWS_S3_BUCKET", ""),
			CDNDomain: getEnv("AWS_CLOUDFRONT_DOMAIN", ""),
		},
		GCS: &GCSConfig{
			Bucket:          getEnv("GCP_STORAGE_BUCKET", ""),
			CredentialsFile: getEnv("GCP_CREDENTIALS_FILE", ""),
			CDNDomain:       getEnv("GCP_CDN_DOMAIN", ""),
		},
	}
}
