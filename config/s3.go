package config

// S3Config holds the AWS S3 connection used by the s3 storage backend.
type S3Config struct {
	BucketName string `yaml:"bucketName"`
	Region     string `yaml:"region"`
	Endpoint   string `yaml:"endpoint"`
	AccessKey  string `yaml:"accessKey"`
	SecretKey  string `yaml:"secretKey"`
}

func (c *S3Config) applyEnv(env *envLookup) {
	env.str("AWS_S3_BUCKET_NAME", &c.BucketName)
	env.str("AWS_REGION", &c.Region)
	env.str("AWS_ENDPOINT", &c.Endpoint)
	env.str("AWS_ACCESS_KEY", &c.AccessKey)
	env.str("AWS_SECRET_KEY", &c.SecretKey)
}
