package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-playground/validator"
	"github.com/gorilla/mux"
	"github.com/secureher/secureher/server/alert"
	"github.com/secureher/secureher/server/auth"
	"github.com/secureher/secureher/server/auth/key"
	"github.com/secureher/secureher/server/gstorage"
	"github.com/secureher/secureher/server/logger"
	"github.com/secureher/secureher/server/models"
	"github.com/secureher/secureher/server/twilio"
	"github.com/secureher/secureher/server/work"
	"github.com/secureher/secureher/shared"
	"github.com/secureher/secureher/utils"
	"github.com/spf13/viper"
)

var (
	logg     = logger.NewLogger()
	validate = validator.New()
)

type RequestContextKey string

type DecodedJWT struct {
	Claims   *auth.SecureHerTokenClaims
	ErrorMsg string
}

// Server owns every collaborator handle - auth keys, db-backed job queue,
// sms client, object storage & the alert engine - constructed once at
// startup & passed by reference. No package-level client singletons.
type Server struct {
	config      *shared.ServerConfig
	configDir   string
	authKeyPair *key.KeyPair
	smsClient   *twilio.ClientWrapper
	storage     *gstorage.GStorage
	workerPool  *work.WorkerPoolAdapter
	engine      *alert.Engine
}

// Start wires up all collaborators from the provided config & runs the
// http server until interrupted.
func Start(config *viper.Viper, devMode bool) {
	serverConfig := parseAndValidateConfig(config)

	fatalOnError(registerValidators(validate))

	configDir := configDirectory(devMode)

	var storage *gstorage.GStorage
	var err error
	if serverConfig.Google.Storage.Bucket != "" {
		storage, err = gstorage.NewGStorage(serverConfig.Google.ApplicationCredentials)
		fatalOnError(err)
	}

	// A fresh host with backup-and-sync enabled restores the previous db
	// before opening it
	restoreSqliteDbIfMissing(serverConfig, storage, configDir)

	fatalOnError(models.Initialize(&models.DbConfig{
		PassPhrase: serverConfig.Sqlite.PassPhrase,
		DbDir:      configDir,
	}))

	authKeyPair, err := key.NewKeyPairFromRSAPrivateKeyPem(serverConfig.SecureHer.PrivateKeyPem)
	fatalOnError(err)

	smsClient := twilio.NewClient(serverConfig.Twilio, devMode)

	workerPool := work.NewWorkerAdapter(serverConfig.SecureHer.Cron.TimeZone, devMode)

	server := &Server{
		config:      serverConfig,
		configDir:   configDir,
		authKeyPair: authKeyPair,
		smsClient:   smsClient,
		storage:     storage,
		workerPool:  workerPool,
		engine:      newAlertEngine(serverConfig, smsClient, storage),
	}

	server.registerJobHandlers()
	server.enqueueJobs()
	workerPool.Start()

	httpServer := &http.Server{
		Handler: server.router(),
		Addr:    fmt.Sprintf(":%v", serverConfig.SecureHer.Listener.Port),
	}

	go serve(httpServer)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	server.cleanup(httpServer, configDir)
}

func (s *Server) router() *mux.Router {
	router := mux.NewRouter()
	router.Use(loggingMiddleware)

	v1 := router.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/health", healthCheck).Methods("GET")
	v1.HandleFunc("/signup", s.signUp).Methods("POST")
	v1.HandleFunc("/login", s.logIn).Methods("POST")
	v1.HandleFunc("/jwks", s.jwks).Methods("GET")

	protected := v1.NewRoute().Subrouter()
	protected.Use(s.initialContextMiddleware, s.protectedRouteMiddleware)
	protected.HandleFunc("/users/{uid}", s.findUser).Methods("GET")
	protected.HandleFunc("/users/{uid}", s.updateUser).Methods("PATCH")
	protected.HandleFunc("/users/{uid}", s.deleteUser).Methods("DELETE")
	protected.HandleFunc("/users/{uid}/photo", s.uploadProfilePhoto).Methods("POST")
	protected.HandleFunc("/users/{uid}/contacts", s.createContact).Methods("POST")
	protected.HandleFunc("/users/{uid}/contacts", s.listContacts).Methods("GET")
	protected.HandleFunc("/users/{uid}/contacts/{id}", s.updateContact).Methods("PUT")
	protected.HandleFunc("/users/{uid}/contacts/{id}", s.deleteContact).Methods("DELETE")
	protected.HandleFunc("/users/{uid}/contacts/{id}/selection", s.toggleContactSelection).Methods("PUT")
	protected.HandleFunc("/users/{uid}/alerts", s.triggerAlert).Methods("POST")
	protected.HandleFunc("/users/{uid}/alerts", s.listAlerts).Methods("GET")
	protected.HandleFunc("/sos/send", s.sendSOS).Methods("POST")
	protected.HandleFunc("/lookup", s.lookupUserByMobile).Methods("POST")
	protected.HandleFunc("/messages", s.createMessage).Methods("POST")
	protected.HandleFunc("/messages", s.listMessages).Methods("GET")

	admin := v1.NewRoute().Subrouter()
	admin.Use(s.initialContextMiddleware, s.adminRouteMiddleware)
	admin.HandleFunc("/jobs", s.listJobs).Methods("GET")

	return router
}

func (s *Server) cleanup(httpServer *http.Server, configDir string) {
	// Stop periodic jobs & workers first so no job runs against a closing db
	s.workerPool.Stop()

	if s.sqliteBackupEnabled() {
		if err := s.backupSqliteDb(map[string]interface{}{"db_file": models.DbFilePath(configDir)}); err != nil {
			logg.Errorf("final db backup failed: %v", err)
		}
	}

	// Shutdown server gracefully
	ctxShutDown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctxShutDown); err != nil {
		logg.Fatalf("SecureHer server shutdown failed: %+v", err)
	}

	logg.Infof("SecureHer server stopped properly")
}

func restoreSqliteDbIfMissing(config *shared.ServerConfig, storage *gstorage.GStorage, configDir string) {
	backupEnabled, ok := config.Google.Storage.EnableSqliteBackupAndSync.(bool)
	if !ok || !backupEnabled || storage == nil {
		return
	}

	dbFile := models.DbFilePath(configDir)
	if utils.FileExist(dbFile) {
		return
	}

	object := path.Join(config.Google.Storage.Prefix, filepath.Base(dbFile))
	err := storage.DownloadFile(config.Google.Storage.Bucket, object, dbFile)
	if err == gstorage.ErrObjectNotExist {
		logg.Infof("No db backup found in gs://%v, starting fresh", config.Google.Storage.Bucket)
		return
	}
	fatalOnError(err)

	logg.Infof("Restored db file from gs://%v", config.Google.Storage.Bucket)
}

func newAlertEngine(config *shared.ServerConfig, smsClient *twilio.ClientWrapper, storage *gstorage.GStorage) *alert.Engine {
	var uploader alert.BlobUploader
	if storage != nil {
		uploader = &audioStore{
			storage: storage,
			bucket:  config.Google.Storage.Bucket,
			prefix:  path.Join(config.Google.Storage.Prefix, "audio"),
		}
	}

	return alert.NewEngine(
		alert.NewDispatcher(smsClient),
		uploader,
		alert.Config{
			MaxRecordingSeconds: config.SecureHer.Alert.MaxRecordingSeconds,
			LocationTimeout:     time.Duration(config.SecureHer.Alert.LocationTimeoutSeconds) * time.Second,
			SentDisplayDelay:    time.Duration(config.SecureHer.Alert.SentDisplaySeconds) * time.Second,
		},
	)
}

// audioStore adapts object storage to the engine's uploader contract with
// the configured bucket/prefix baked in.
type audioStore struct {
	storage *gstorage.GStorage
	bucket  string
	prefix  string
}

func (store *audioStore) UploadBlob(ctx context.Context, content io.Reader) (string, error) {
	return store.storage.UploadBlob(ctx, store.bucket, store.prefix, content)
}
