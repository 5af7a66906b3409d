package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/chenBenjamin97/match-analyzer/pkg/analysis"
	"github.com/chenBenjamin97/match-analyzer/pkg/api"
	"github.com/chenBenjamin97/match-analyzer/pkg/config"
	"github.com/chenBenjamin97/match-analyzer/pkg/detect"
	"github.com/chenBenjamin97/match-analyzer/pkg/metrics"
	"github.com/chenBenjamin97/match-analyzer/pkg/results"
	"github.com/chenBenjamin97/match-analyzer/pkg/store"
	"github.com/chenBenjamin97/match-analyzer/pkg/utils"
	"github.com/chenBenjamin97/match-analyzer/pkg/video"
	log "github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default ./config.yaml)")
	analyzePath := flag.String("analyze", "", "analyze a single video, print its result and exit")
	outPath := flag.String("out", "", "with -analyze, write the result to this file instead of the results directory")
	testVideo := flag.String("make-test-video", "", "write a synthetic 5 second test video to this path and exit")
	flag.Parse()

	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetReportCaller(true)

	if *testVideo != "" {
		if err := video.WriteSynthetic(*testVideo, 20, 100, video.DefaultPlayers); err != nil {
			log.Fatalf("Error: Could not write test video, got '%v'", err)
		}
		log.Infof("Test video written to '%s'", *testVideo)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		log.Fatalf("Error: invalid log.level '%s'", cfg.Log.Level)
	}
	log.SetLevel(level)

	//create missing directories from config file
	if err := utils.EnsureDirs(cfg.Directories()...); err != nil {
		log.Fatalf("Error: %v", err)
	}

	detector, err := detect.New(cfg.Detector)
	if err != nil {
		log.Fatalf("Error: Could not create detector, got '%v'", err)
	}
	defer detector.Close()

	writer, err := results.NewFileWriter(cfg.Directory.Results, cfg.Results.Format)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	m := metrics.New()
	analyzer := analysis.NewAnalyzer(video.Opener, detector, runWriter(writer, *analyzePath, *outPath), analysis.Options{
		SamplingInterval: cfg.Analysis.SamplingInterval,
		MaxSeconds:       cfg.Analysis.MaxSeconds,
		RateRelative:     cfg.Analysis.RateRelative,
	})
	analyzer.Metrics = m

	if cfg.Directory.Annotated != "" {
		ann, err := video.NewAnnotator(cfg.Directory.Annotated)
		if err != nil {
			log.Fatalf("Error: %v", err)
		}
		analyzer.Annotator = ann
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *analyzePath != "" {
		if err := analyzeOnce(ctx, analyzer, writer, *analyzePath, *outPath); err != nil {
			log.Errorf("Error: %v", err)
			detector.Close()
			os.Exit(1)
		}
		return
	}

	st, err := store.Open(store.Config{
		Backend:    cfg.Store.Backend,
		MaxRecords: cfg.Store.MaxRecords,
		SQLitePath: cfg.Store.SQLitePath,
	})
	if err != nil {
		log.Fatalf("Error: Could not open store, got '%v'", err)
	}
	defer st.Close()

	server := api.NewServer(analyzer, st, api.Options{
		UploadsDir:      cfg.Directory.Uploads,
		MaxUploadMB:     cfg.HTTP.MaxUploadMB,
		StaticFilesPath: cfg.Frontend.StaticFilesPath,
		Metrics:         m,
	})

	r := server.SetRouter()
	if err := r.Run(":" + cfg.HTTP.Port); err != nil {
		log.Errorf("Error: Got '%v'", err)
	}
}

//runWriter is the writer the analyzer persists with. A one-shot run with -out writes only there, so the analyzer gets none.
func runWriter(writer *results.FileWriter, analyzePath, out string) analysis.Writer {
	if analyzePath != "" && out != "" {
		return nil
	}
	return writer
}

//analyzeOnce runs one video and prints its summary. With out set the artifact goes to that exact path.
func analyzeOnce(ctx context.Context, analyzer *analysis.Analyzer, writer *results.FileWriter, path, out string) error {
	result, location, err := analyzer.Analyze(ctx, path)
	if err != nil {
		return err
	}

	if out != "" {
		if err := writer.WriteFile(out, result); err != nil {
			return err
		}
		location = out
	}

	summary, err := json.MarshalIndent(result.Summary, "", "  ")
	if err != nil {
		return err
	}

	fmt.Println(string(summary))
	log.Infof("Results saved to '%s'", location)
	return nil
}
