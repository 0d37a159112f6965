// Package main provides launch of the whole application
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/UnendingLoop/ImageCompressor/internal/export"
	"github.com/UnendingLoop/ImageCompressor/internal/imageproc"
	"github.com/UnendingLoop/ImageCompressor/internal/metadata"
	"github.com/UnendingLoop/ImageCompressor/internal/mwlogger"
	"github.com/UnendingLoop/ImageCompressor/internal/service"
	"github.com/UnendingLoop/ImageCompressor/internal/transport"
	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"
)

func main() {
	// инициализировать конфиг/ считать энвы
	appConfig := config.New()
	appConfig.EnableEnv("")
	if err := appConfig.LoadEnvFiles("./.env"); err != nil {
		log.Fatalf("Failed to load envs: %s\nExiting app...", err)
	}

	// стартуем логгер
	zlog.InitConsole()
	if err := zlog.SetLevel("info"); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	// готовим заранее слушатель прерываний - контекст для всего приложения
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// окно дебаунса настраиваемое, пусто/0 = дефолтные 300мс
	windowMs, _ := strconv.Atoi(appConfig.GetString("DEBOUNCE_MS"))
	window := time.Duration(windowMs) * time.Millisecond

	// собираем пайплайн и экспортер
	pipeline := service.NewPipeline(imageproc.Codec{}, metadata.Extractor{}, window)
	var svc BatchPipeline = pipeline
	var exporter BatchExporter = export.NewAssembler(pipeline)

	// cоздаем экземпляр хендлера HTTP
	handlers := transport.NewBatchHandler(svc, exporter)

	// сетапим сервер
	mode := appConfig.GetString("GIN_MODE")
	engine := ginext.New(mode)

	engine.GET("/ping", handlers.SimplePinger)
	engine.POST("/images/upload", handlers.Upload)                // загрузка пачки
	engine.GET("/images", handlers.GetBatch)                      // снапшот пачки для рендера
	engine.PUT("/images/params", handlers.SetParams)              // глобальные параметры
	engine.PATCH("/images/:name/quality", handlers.SetQuality)    // пер-айтем качество
	engine.POST("/images/:name/recompress", handlers.Recompress)  // прямая перекомпрессия
	engine.PATCH("/images/:name/metadata", handlers.SetMetadata)  // правка метаданных
	engine.PATCH("/images/:name/rename", handlers.Rename)         // имя выходного файла
	engine.GET("/images/download", handlers.DownloadAll)          // zip всей пачки
	engine.GET("/images/:name/download", handlers.DownloadOne)    // один файл
	engine.DELETE("/images", handlers.ClearBatch)                 // очистка пачки

	srv := &http.Server{
		Addr:    ":" + appConfig.GetString("APP_PORT"),
		Handler: mwlogger.NewMWLogger(engine),
	}

	// Server launch
	go func() {
		log.Printf("Server running on http://localhost%s\n", srv.Addr)
		err := srv.ListenAndServe()
		if err != nil {
			switch {
			case errors.Is(err, http.ErrServerClosed):
				log.Println("Server gracefully stopping...")
			default:
				log.Printf("Server stopped: %v", err)
				stop()
			}
		}
	}()

	// ждем отмены контекста для запуска грейсфул остановки
	<-ctx.Done()

	shutdown(srv, pipeline)
	log.Println("Exiting app...")
}

func shutdown(srv *http.Server, pipeline BatchPipeline) {
	log.Println("Interrupt received!!! Starting shutdown sequence...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Println("Failed to stop HTTP-server correctly:", err)
	}
	log.Println("HTTP-server stopped.")

	// гасим висящие дебаунс-окна и дожидаемся инфлайт-энкодов
	pipeline.Close()
	log.Println("Pipeline drained.")
}
