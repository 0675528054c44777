package config

// MinioConfig holds the MinIO connection used by the minio storage backend.
type MinioConfig struct {
	AccessKey  string `yaml:"accessKey"`
	SecretKey  string `yaml:"secretKey"`
	Endpoint   string `yaml:"endpoint"`
	UseSSL     bool   `yaml:"useSSL"`
	Region     string `yaml:"region"`
	BucketName string `yaml:"bucketName"`
}

func (c *MinioConfig) applyEnv(env *envLookup) {
	env.str("MINIO_ACCESS_KEY", &c.AccessKey)
	env.str("MINIO_SECRET_KEY", &c.SecretKey)
	env.str("MINIO_ENDPOINT", &c.Endpoint)
	env.boolean("MINIO_USE_SSL", &c.UseSSL)
	env.str("MINIO_REGION", &c.Region)
	env.str("MINIO_BUCKET_NAME", &c.BucketName)
}
