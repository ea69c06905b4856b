// Package cloudflare provides a client for interacting with the Cloudflare API.
package cloudflare

import (
	"context"
	"fmt"

	a "bitwise74/file-api/aws"

	"github.com/spf13/viper"
)

// R2Endpoint returns the S3 compatible endpoint of an R2 account
func R2Endpoint(accountID string) string {
	return fmt.Sprintf("https://%s.r2.cloudflarestorage.com", accountID)
}

// NewR2 connects to the R2 bucket configured under the cloudflare config
// section. R2 speaks the S3 API so the regular S3 client is reused.
func NewR2(ctx context.Context) (*a.S3Client, error) {
	return a.New(ctx, a.Options{
		AccessKeyID:     viper.GetString("cloudflare.access_key_id"),
		SecretAccessKey: viper.GetString("cloudflare.secret_access_key"),
		Region:          "auto",
		Bucket:          viper.GetString("cloudflare.bucket"),
		Endpoint:        R2Endpoint(viper.GetString("cloudflare.account_id")),
		PublicURL:       viper.GetString("cloudflare.public_url"),
		PresignTTL:      viper.GetDuration("storage.presign_ttl"),
	})
}
