package blob

import (
	"context"
	"fmt"
	"os"

	"github.com/networkearth/fishflow/internal/blob/fs"
	"github.com/networkearth/fishflow/internal/blob/memory"
	"github.com/networkearth/fishflow/internal/blob/s3"
)

// Open selects a blob.Store implementation using environment variables.
//
//	FISHFLOW_BLOB_DRIVER: fs|s3|memory (default fs)
//	FISHFLOW_BLOB_FS_ROOT: directory root when driver=fs (default ./data)
//	(S3 specific variables documented in the s3 package)
func Open(ctx context.Context) (Store, error) {
	driver := os.Getenv("FISHFLOW_BLOB_DRIVER")
	if driver == "" {
		driver = string(DriverFilesystem)
	}
	switch Driver(driver) {
	case DriverFilesystem:
		root := os.Getenv("FISHFLOW_BLOB_FS_ROOT")
		return fs.New(root)
	case DriverS3:
		return s3.OpenFromEnv(ctx)
	case DriverMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}
