package utils

import "errors"

var (
	ErrorRecordNotFound = errors.New("record not found")
	ErrorStorageConfig  = errors.New("artifact storage is not configured")
)
