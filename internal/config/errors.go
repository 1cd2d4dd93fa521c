package config

import "errors"

var (
	ErrModelsDirNotSet  = errors.New("OLLAMA_MODELS is not set")
	ErrBackupPathNotSet = errors.New("OLLAMA_BACKUP_PATH is not set")
	ErrModelsDirMissing = errors.New("models directory does not exist")
	ErrModelsDirNotDir  = errors.New("models path is not a directory")
	ErrStorageConfig    = errors.New("invalid storage configuration")
)
