package pgbackend

import "errors"

var (
	ErrFailedToParseDBConfig    = errors.New("pgbackend: failed to parse database configuration")
	ErrFailedToOpenDBConnection = errors.New("pgbackend: failed to open database connection")
	ErrSetDialect               = errors.New("pgbackend migrator: failed to set dialect")
	ErrApplyMigrations          = errors.New("pgbackend migrator: failed to apply migrations")
)
