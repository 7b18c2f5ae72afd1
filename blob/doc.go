// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package blob stores uploaded tally sheets and compilation photos.

	store, err := blob.Open(ctx, cfg)
	info, err := store.Put(ctx, blob.NewKey(".jpg"), file, blob.PutOptions{ContentType: "image/jpeg"})

Backends, selected by BLOB_DRIVER:

  - memory: process memory, for tests.
  - fs: files under BLOB_FS_ROOT, served back by GET /uploads/{key...}.
  - s3: an S3 or MinIO bucket (BLOB_S3_BUCKET, BLOB_S3_REGION,
    BLOB_S3_ENDPOINT, BLOB_S3_PATH_STYLE; credentials from the AWS chain).

Put never overwrites: keys are generated and an existing key is ErrExists.

ValidateProofURL decides which photo URLs a compilation may reference.
*/
package blob
