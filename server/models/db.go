package models

import (
	"fmt"
	"log"
	"path/filepath"

	sqlite "github.com/Daskott/gorm-sqlite-cipher"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

var db *gorm.DB

type DbConfig struct {
	PassPhrase string
	DbDir      string
}

// Initialize opens(or creates) the encrypted sqlite database in dbConfig.DbDir,
// runs migrations & inserts seed records required by the app.
func Initialize(dbConfig *DbConfig) error {
	var err error

	db, err = gorm.Open(sqlite.Open(dsn(dbConfig)), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		return fmt.Errorf("unable to open database: %v", err)
	}

	return autoMigrateAndSeed()
}

// InitializeTestDb swaps the package db handle for a shared in-memory database.
// Only for use in tests.
func InitializeTestDb() {
	var err error

	db, err = gorm.Open(sqlite.Open("file::memory:?cache=shared&_pragma_key=test"), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		log.Panicf("unable to open test database: %v", err)
	}

	// Start each test package from a clean slate
	db.Migrator().DropTable(&Alert{}, &Contact{}, &Message{}, &Job{}, &JobStatus{}, &User{}, &Role{})

	if err = autoMigrateAndSeed(); err != nil {
		log.Panic(err)
	}
}

// DbFilePath returns the location of the sqlite db file within dbDir
func DbFilePath(dbDir string) string {
	return filepath.Join(dbDir, "secureher.db")
}

func dsn(dbConfig *DbConfig) string {
	return fmt.Sprintf("file:%s?_pragma_key=%s&_pragma_cipher_page_size=4096",
		DbFilePath(dbConfig.DbDir), dbConfig.PassPhrase)
}

func autoMigrateAndSeed() error {
	err := db.AutoMigrate(&Role{}, &JobStatus{}, &Job{}, &User{}, &Contact{}, &Alert{}, &Message{})
	if err != nil {
		return err
	}

	for _, name := range []string{ADMIN_USER_ROLE, BASIC_USER_ROLE} {
		err = db.FirstOrCreate(&Role{}, Role{Name: name}).Error
		if err != nil {
			return err
		}
	}

	for name := range JobStatusNameMap {
		err = db.FirstOrCreate(&JobStatus{}, JobStatus{Name: name}).Error
		if err != nil {
			return err
		}
	}

	return nil
}
