package transform

import (
	"context"
	"crypto/sha256"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/rs/zerolog/log"
)

const (
	bedrockRuntimeService = "bedrock"
	bedrockHostPattern    = "bedrock-runtime.%s.amazonaws.com"
)

// BedrockSigner resolves the connection for Bedrock-hosted models: SigV4
// request signing instead of an API key, and a region-derived endpoint
// instead of a base-URL secret. Credentials come from the standard AWS
// credential chain via aws-sdk-go-v2/config.
type BedrockSigner struct {
	credentials aws.CredentialsProvider
	region      string
	signer      *v4.Signer
	configured  bool
}

// NewBedrockSigner loads AWS credentials from the default chain. The
// returned signer is non-nil even without credentials; IsConfigured reports
// whether signing is possible.
func NewBedrockSigner() *BedrockSigner {
	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = os.Getenv("AWS_DEFAULT_REGION")
	}
	if region == "" {
		region = "us-east-1"
	}

	bs := &BedrockSigner{
		region: region,
		signer: v4.NewSigner(),
	}

	cfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(region),
	)
	if err != nil {
		log.Warn().Err(err).Msg("failed to load AWS config for Bedrock signing")
		return bs
	}

	creds, err := cfg.Credentials.Retrieve(context.Background())
	if err != nil || creds.AccessKeyID == "" || creds.SecretAccessKey == "" {
		log.Debug().Msg("no AWS credentials available, Bedrock signing disabled")
		return bs
	}

	bs.credentials = cfg.Credentials
	bs.configured = true
	log.Info().Str("region", region).Msg("Bedrock signer initialized")
	return bs
}

// IsConfigured reports whether AWS credentials are available for signing.
func (bs *BedrockSigner) IsConfigured() bool {
	return bs.configured
}

// Region returns the configured AWS region.
func (bs *BedrockSigner) Region() string {
	return bs.region
}

// ResolveEndpoint constructs the Bedrock Runtime URL for an invoke path,
// e.g. /model/anthropic.claude-3-5-sonnet-20241022-v2:0/invoke.
func (bs *BedrockSigner) ResolveEndpoint(path string) string {
	host := fmt.Sprintf(bedrockHostPattern, bs.region)
	return fmt.Sprintf("https://%s%s", host, path)
}

// SignRequest signs an outbound request with SigV4 for the bedrock-runtime
// service. The request's Host and URL must already point at the target
// endpoint; body is needed for the payload hash.
func (bs *BedrockSigner) SignRequest(ctx context.Context, req *http.Request, body []byte) error {
	if !bs.configured {
		return fmt.Errorf("bedrock signer not configured: no AWS credentials available")
	}

	creds, err := bs.credentials.Retrieve(ctx)
	if err != nil {
		return fmt.Errorf("failed to retrieve AWS credentials: %w", err)
	}

	payloadHash := fmt.Sprintf("%x", sha256.Sum256(body))
	if err := bs.signer.SignHTTP(ctx, creds, req, payloadHash, bedrockRuntimeService, bs.region, time.Now()); err != nil {
		return fmt.Errorf("failed to sign request: %w", err)
	}
	return nil
}
