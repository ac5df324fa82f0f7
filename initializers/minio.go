package initializers

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"gopkg.in/yaml.v3"
)

type MinioConfig struct {
	Endpoint         string
	AccessKey        string
	SecretKey        string
	Bucket           string
	UseSSL           bool
	MaxSize          int64
	ImageTypes       []string
	ExternalEndpoint string
	ExternalUseSSL   bool
}

var MinioClient *minio.Client
var Conf MinioConfig

// uploadsConfigYAML defines optional YAML configuration for upload settings.
// If present, it overrides environment variables for upload-related fields.
type uploadsConfigYAML struct {
	MaxFileSize       int64    `yaml:"max_file_size"`
	AllowedImageTypes []string `yaml:"allowed_image_types"`
}

// loadUploadsConfig tries to load YAML config from disk. If not found, returns nil with error.
func loadUploadsConfig() (*uploadsConfigYAML, error) {
	path := os.Getenv("UPLOADS_CONFIG_FILE")
	if strings.TrimSpace(path) == "" {
		path = "config/uploads.yaml"
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg uploadsConfigYAML
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func InitMinio() error {
	Conf = MinioConfig{
		Endpoint:         os.Getenv("MINIO_ENDPOINT"),
		AccessKey:        os.Getenv("MINIO_ACCESS_KEY"),
		SecretKey:        os.Getenv("MINIO_SECRET_KEY"),
		Bucket:           envDefault("MINIO_BUCKET", "journal-images"),
		UseSSL:           parseBool(os.Getenv("MINIO_USE_SSL")),
		MaxSize:          parseInt64(os.Getenv("MAX_IMAGE_SIZE"), 10485760),
		ImageTypes:       parseImageTypes(os.Getenv("ALLOWED_IMAGE_TYPES")),
		ExternalEndpoint: strings.TrimSpace(os.Getenv("MINIO_EXTERNAL_ENDPOINT")),
		ExternalUseSSL: func() bool {
			raw := strings.TrimSpace(os.Getenv("MINIO_EXTERNAL_ENDPOINT"))
			if v := strings.TrimSpace(os.Getenv("MINIO_EXTERNAL_USE_SSL")); v != "" {
				return parseBool(v)
			}
			if strings.HasPrefix(raw, "https://") {
				return true
			}
			if strings.HasPrefix(raw, "http://") {
				return false
			}
			return parseBool(os.Getenv("MINIO_USE_SSL"))
		}(),
	}

	// If YAML config exists, override upload-related settings
	if yamlCfg, err := loadUploadsConfig(); err == nil && yamlCfg != nil {
		if yamlCfg.MaxFileSize > 0 {
			Conf.MaxSize = yamlCfg.MaxFileSize
		}
		if len(yamlCfg.AllowedImageTypes) > 0 {
			Conf.ImageTypes = yamlCfg.AllowedImageTypes
		}
	}

	client, err := minio.New(Conf.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(Conf.AccessKey, Conf.SecretKey, ""),
		Secure: Conf.UseSSL,
	})
	if err != nil {
		return err
	}
	MinioClient = client
	exists, errBucket := client.BucketExists(context.Background(), Conf.Bucket)
	if errBucket != nil {
		return errBucket
	}
	if !exists {
		errCreate := client.MakeBucket(context.Background(), Conf.Bucket, minio.MakeBucketOptions{})
		if errCreate != nil {
			return errCreate
		}
		// Entry image URLs are served straight from the bucket.
		policy := fmt.Sprintf(`{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Principal":{"AWS":["*"]},"Action":["s3:GetObject"],"Resource":["arn:aws:s3:::%s/*"]}]}`, Conf.Bucket)
		if err := client.SetBucketPolicy(context.Background(), Conf.Bucket, policy); err != nil {
			return err
		}
	}

	log.Println("Minio bucket ready:", Conf.Bucket)
	return nil
}

func envDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func parseBool(val string) bool {
	return strings.ToLower(val) == "true"
}

func parseInt64(val string, def int64) int64 {
	if val == "" {
		return def
	}
	v, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return def
	}
	return v
}

func parseImageTypes(val string) []string {
	if val == "" {
		return []string{"image/jpeg", "image/png", "image/gif", "image/webp"}
	}
	return strings.Split(val, ",")
}

func baseMIME(mime string) string {
	if mime == "" {
		return ""
	}
	parts := strings.Split(mime, ";")
	return strings.TrimSpace(parts[0])
}

// CheckImageAllowed validates an upload against the server-side policy.
func CheckImageAllowed(size int64, mime string) error {
	if size > Conf.MaxSize {
		return fmt.Errorf("image size exceeds the limit")
	}
	incoming := baseMIME(mime)
	allowed := false
	for _, t := range Conf.ImageTypes {
		if baseMIME(t) == incoming {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("image type is not allowed")
	}
	return nil
}

// ImageStore stores entry images in the MinIO bucket. It implements the
// workflow's object storage interface: Upload returns the public URL a
// browser can fetch, Delete takes the object key (the URL's trailing
// path segment).
type ImageStore struct{}

func NewImageStore() *ImageStore { return &ImageStore{} }

func (s *ImageStore) Upload(ctx context.Context, name, contentType string, size int64, r io.Reader) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	key := uuid.NewString()
	if ext := strings.ToLower(filepath.Ext(name)); ext != "" && len(ext) <= 8 {
		key += ext
	}
	_, err := MinioClient.PutObject(ctx, Conf.Bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", err
	}
	return PublicImageURL(key), nil
}

func (s *ImageStore) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return MinioClient.RemoveObject(ctx, Conf.Bucket, key, minio.RemoveObjectOptions{})
}

// PublicImageURL builds the retrievable URL for an object key, preferring
// the external endpoint when the bucket sits behind one.
func PublicImageURL(key string) string {
	endpoint := Conf.ExternalEndpoint
	endpoint = strings.TrimPrefix(endpoint, "http://")
	endpoint = strings.TrimPrefix(endpoint, "https://")
	scheme := "http"
	useSSL := Conf.UseSSL
	if endpoint == "" {
		endpoint = Conf.Endpoint
	} else {
		useSSL = Conf.ExternalUseSSL
	}
	if useSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, endpoint, Conf.Bucket, key)
}
