// Package locations retrieves the list of valid sensor locations from the
// JSON document published to S3. The document is an array of
// {"id", "x", "y"} records and is consumed once at startup.
package locations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/randalmurphal/gasmon/pkg/gasmon/event"
)

// ErrMalformed indicates the locations document could not be parsed into
// a complete location list.
var ErrMalformed = errors.New("malformed locations file")

// ObjectGetter is the slice of the S3 API this package needs.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// NewS3Client builds an S3 client from the default AWS configuration chain.
func NewS3Client(ctx context.Context) (*s3.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return s3.NewFromConfig(cfg), nil
}

// Fetch downloads and parses the locations document at bucket/key.
func Fetch(ctx context.Context, client ObjectGetter, bucket, key string) ([]event.Location, error) {
	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("download s3://%s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read s3://%s/%s: %w", bucket, key, err)
	}

	return Parse(data)
}

// rawLocation uses pointer fields so missing keys are distinguishable
// from zero values.
type rawLocation struct {
	ID *string  `json:"id"`
	X  *float64 `json:"x"`
	Y  *float64 `json:"y"`
}

// Parse decodes the locations document, rejecting records with missing
// fields.
func Parse(data []byte) ([]event.Location, error) {
	var raw []rawLocation
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	locations := make([]event.Location, 0, len(raw))
	for i, r := range raw {
		if r.ID == nil || r.X == nil || r.Y == nil {
			return nil, fmt.Errorf("%w: record %d is missing id, x, or y", ErrMalformed, i)
		}
		locations = append(locations, event.Location{ID: *r.ID, X: *r.X, Y: *r.Y})
	}
	return locations, nil
}
