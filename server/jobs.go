package server

import (
	"fmt"

	"github.com/secureher/secureher/server/models"
	"github.com/secureher/secureher/server/work"
)

const backupDbHandlerName = "backup_db"

func (s *Server) registerJobHandlers() {
	fatalOnError(s.workerPool.Register(backupDbHandlerName, s.backupSqliteDb))
}

func (s *Server) enqueueJobs() {
	if !s.sqliteBackupEnabled() {
		return
	}

	fatalOnError(s.workerPool.PeriodicallyPerform(s.config.Google.Storage.SqliteBackupSchedule, work.JobParams{
		Name:    backupDbHandlerName,
		Handler: backupDbHandlerName,
		Args: map[string]interface{}{
			"db_file": models.DbFilePath(s.configDir),
		},
	}))
}

func (s *Server) sqliteBackupEnabled() bool {
	enabled, ok := s.config.Google.Storage.EnableSqliteBackupAndSync.(bool)
	return ok && enabled && s.storage != nil
}

// backupSqliteDb uploads the encrypted db file to the configured bucket. The
// object key stays stable, so each run overwrites the previous backup.
func (s *Server) backupSqliteDb(args map[string]interface{}) error {
	dbFile, ok := args["db_file"].(string)
	if !ok {
		return fmt.Errorf("backupSqliteDb: 'db_file' arg is required")
	}

	logg.Infof("Backing up db file to gs://%v", s.config.Google.Storage.Bucket)
	return s.storage.UploadFile(s.config.Google.Storage.Bucket, s.config.Google.Storage.Prefix, dbFile)
}
