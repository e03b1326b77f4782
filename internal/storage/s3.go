package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go/middleware"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

// Presigner firma URLs de subida y arma la URL pública del objeto resultante.
type Presigner interface {
	PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, error)
	ObjectURL(key string) string
}

// S3Config configura el bucket destino.
type S3Config struct {
	Bucket string
	Region string
	// Endpoint para S3-compatibles (MinIO, R2...). Vacío = AWS.
	Endpoint     string
	UsePathStyle bool
	// Credenciales estáticas; vacías = cadena default del SDK (env, shared config, IAM role).
	AccessKeyID     string
	SecretAccessKey string
	// PublicBaseURL, si se define, reemplaza el host en la URL pública (CDN).
	PublicBaseURL string
}

// S3Presigner implementa Presigner con aws-sdk-go-v2. Firmar no hace I/O.
type S3Presigner struct {
	cfg     S3Config
	presign *s3.PresignClient
}

var _ Presigner = (*S3Presigner)(nil)

// NewS3Presigner carga la config del SDK y arma el cliente de pre-firma.
func NewS3Presigner(ctx context.Context, cfg S3Config) (*S3Presigner, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("storage: bucket is required")
	}
	if cfg.Region == "" {
		return nil, errors.New("storage: region is required")
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
	return &S3Presigner{cfg: cfg, presign: s3.NewPresignClient(client)}, nil
}

// PresignPut firma un PUT para key con Content-Type entre los headers firmados:
// el cliente debe enviar exactamente ese header o S3 rechaza la subida.
func (p *S3Presigner) PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, error) {
	req, err := p.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.cfg.Bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(ttl), signContentType(contentType))
	if err != nil {
		return "", fmt.Errorf("storage: presign put %s: %w", key, err)
	}
	return req.URL, nil
}

// signContentType registra pinContentType en el stack de la operación. Las
// APIOptions se aplican después de los middlewares propios del presign.
func signContentType(contentType string) func(*s3.PresignOptions) {
	return func(o *s3.PresignOptions) {
		o.ClientOptions = append(o.ClientOptions, func(so *s3.Options) {
			so.APIOptions = append(so.APIOptions, func(stack *middleware.Stack) error {
				return stack.Build.Add(pinContentType{value: contentType}, middleware.After)
			})
		})
	}
}

// pinContentType vuelve a poner Content-Type después de que el SDK lo quita en
// requests sin body (un presign nunca tiene body). Corre antes de Finalize, donde
// se firma, así que el header queda en X-Amz-SignedHeaders.
type pinContentType struct {
	value string
}

func (pinContentType) ID() string { return "PinPresignContentType" }

func (m pinContentType) HandleBuild(ctx context.Context, in middleware.BuildInput, next middleware.BuildHandler) (
	middleware.BuildOutput, middleware.Metadata, error,
) {
	req, ok := in.Request.(*smithyhttp.Request)
	if !ok {
		return middleware.BuildOutput{}, middleware.Metadata{}, fmt.Errorf("storage: unexpected transport type %T", in.Request)
	}
	if m.value != "" {
		req.Header.Set("Content-Type", m.value)
	}
	return next.HandleBuild(ctx, in)
}

// ObjectURL devuelve la URL (no firmada) donde queda el objeto.
func (p *S3Presigner) ObjectURL(key string) string {
	k := escapeKey(key)
	switch {
	case p.cfg.PublicBaseURL != "":
		return strings.TrimRight(p.cfg.PublicBaseURL, "/") + "/" + k
	case p.cfg.Endpoint != "" && p.cfg.UsePathStyle:
		return strings.TrimRight(p.cfg.Endpoint, "/") + "/" + p.cfg.Bucket + "/" + k
	case p.cfg.Endpoint != "":
		ep := strings.TrimRight(p.cfg.Endpoint, "/")
		if scheme, host, ok := strings.Cut(ep, "://"); ok {
			return scheme + "://" + p.cfg.Bucket + "." + host + "/" + k
		}
		return ep + "/" + p.cfg.Bucket + "/" + k
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", p.cfg.Bucket, p.cfg.Region, k)
	}
}
