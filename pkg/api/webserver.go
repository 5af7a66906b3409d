package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chenBenjamin97/match-analyzer/pkg/analysis"
	"github.com/chenBenjamin97/match-analyzer/pkg/metrics"
	"github.com/chenBenjamin97/match-analyzer/pkg/store"
	"github.com/chenBenjamin97/match-analyzer/pkg/utils"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

//Version is reported by the root endpoint
const Version = "1.0.0"

//multipartSlack is allowed on top of the upload limit for multipart framing and form fields
const multipartSlack = 1 << 20

//Analyzer runs a full analysis of a stored video
type Analyzer interface {
	Analyze(ctx context.Context, videoPath string) (*analysis.AnalysisResult, string, error)
}

//Options configures the HTTP service
type Options struct {
	UploadsDir      string
	MaxUploadMB     int64
	StaticFilesPath string
	Metrics         *metrics.Metrics
}

//Server serves uploads and stored analyses
type Server struct {
	analyzer Analyzer
	store    store.Store
	opts     Options

	now   func() time.Time
	newID func(time.Time) string
}

func NewServer(analyzer Analyzer, st store.Store, opts Options) *Server {
	if opts.MaxUploadMB <= 0 {
		opts.MaxUploadMB = 25
	}

	return &Server{
		analyzer: analyzer,
		store:    st,
		opts:     opts,
		now:      time.Now,
		newID:    newMatchID,
	}
}

//newMatchID returns e.g. match_20240102_150405_1b4e28ba
func newMatchID(t time.Time) string {
	return fmt.Sprintf("match_%s_%s", t.Format(utils.StampLayout), uuid.NewString()[:8])
}

func (s *Server) SetRouter() *gin.Engine {
	r := gin.Default()
	r.Use(cors.Default()) //any origin, like the development frontend expects

	//serve html pages to client
	if s.opts.StaticFilesPath != "" {
		r.Static("/client", s.opts.StaticFilesPath)
	}

	r.GET("/", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{
			"message": "Match Analyzer API",
			"version": Version,
			"status":  "running",
		})
	})

	r.POST("/video/upload", s.upload)
	r.GET("/analyses", s.listAnalyses)
	r.GET("/analysis/:id", s.getAnalysis)
	r.GET("/video/:id", s.play)
	r.GET("/health", s.health)

	if s.opts.Metrics != nil {
		r.GET("/metrics", gin.WrapH(s.opts.Metrics.Handler()))
	}

	return r
}

func detail(ctx *gin.Context, status int, msg string) {
	ctx.JSON(status, gin.H{"detail": msg})
}

func (s *Server) upload(ctx *gin.Context) {
	maxBytes := s.opts.MaxUploadMB << 20
	ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, maxBytes+multipartSlack)

	fHeader, err := ctx.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			detail(ctx, http.StatusRequestEntityTooLarge, fmt.Sprintf("File too large, limit is %d MB", s.opts.MaxUploadMB))
			return
		}
		detail(ctx, http.StatusBadRequest, "Missing video file in field 'file'")
		return
	}

	if !strings.HasPrefix(fHeader.Header.Get("Content-Type"), "video/") {
		detail(ctx, http.StatusBadRequest, "File must be a video")
		return
	}

	log.Infof("api/Upload: Received new file: name - '%s', size - %v Bytes", fHeader.Filename, fHeader.Size)

	file, err := fHeader.Open()
	if err != nil {
		log.Errorf("api/Upload: Could not read request's body, got '%v'", err)
		detail(ctx, http.StatusInternalServerError, "Could not read upload")
		return
	}
	defer file.Close()

	uploadTime := s.now()
	filename := utils.StampedName(uploadTime, fHeader.Filename)
	videoPath := filepath.Join(s.opts.UploadsDir, filename)

	size, err := saveUpload(file, videoPath, maxBytes)
	if err != nil {
		if errors.Is(err, errTooLarge) {
			detail(ctx, http.StatusRequestEntityTooLarge, fmt.Sprintf("File too large, limit is %d MB", s.opts.MaxUploadMB))
			return
		}
		log.Errorf("api/Upload: Could not write '%s' file, got '%v'", videoPath, err)
		detail(ctx, http.StatusInternalServerError, "Could not save upload")
		return
	}

	teamConfig := ctx.PostForm("teamConfig")
	if teamConfig == "" {
		teamConfig = ctx.Query("teamConfig")
	}

	rec := &store.Record{
		MatchID:    s.newID(uploadTime),
		VideoPath:  videoPath,
		Filename:   filename,
		UploadTime: uploadTime,
		TeamConfig: parseTeamConfig(teamConfig),
	}

	//the run outlives a dropped client, only the time cap ends it early
	result, location, err := s.analyzer.Analyze(context.WithoutCancel(ctx.Request.Context()), videoPath)
	rec.Results = result
	rec.ResultPath = location
	if result != nil {
		rec.Faults = result.Faults
	}

	status := http.StatusOK
	switch {
	case err == nil:
		rec.Status = store.StatusAnalyzed
		rec.Message = "Video uploaded and analyzed successfully"
	case errors.Is(err, analysis.ErrWriteFailure):
		rec.Status, rec.Message, rec.Error = store.StatusWriteFailed, "Analysis finished but results could not be saved", err.Error()
		status = http.StatusInternalServerError
	case errors.Is(err, analysis.ErrSourceUnavailable):
		rec.Status, rec.Message, rec.Error = store.StatusFailed, "Video could not be opened", err.Error()
		status = http.StatusUnprocessableEntity
	default:
		rec.Status, rec.Message, rec.Error = store.StatusFailed, "Analysis failed", err.Error()
		status = http.StatusInternalServerError
	}

	if err != nil {
		log.Errorf("api/Upload: Analysis of '%s' failed, got '%v'", videoPath, err)
	}

	if putErr := s.store.Put(rec); putErr != nil {
		log.Errorf("api/Upload: Could not store analysis '%s', got '%v'", rec.MatchID, putErr)
		detail(ctx, http.StatusInternalServerError, "Could not store analysis")
		return
	}

	if status != http.StatusOK {
		ctx.JSON(status, gin.H{
			"detail":   rec.Message + ": " + rec.Error,
			"match_id": rec.MatchID,
			"results":  rec.Results,
		})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"message":  rec.Message,
		"match_id": rec.MatchID,
		"filename": filename,
		"size_mb":  math.Round(float64(size)/(1<<20)*100) / 100,
		"results":  result,
	})
}

var errTooLarge = errors.New("upload too large")

//saveUpload copies at most maxBytes of file into a hidden temp file next to dst and renames it into place
func saveUpload(file io.Reader, dst string, maxBytes int64) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return 0, err
	}
	defer os.Remove(tmp.Name()) //no-op once renamed

	n, err := io.Copy(tmp, io.LimitReader(file, maxBytes+1))
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return 0, err
	}
	if n > maxBytes {
		return 0, errTooLarge
	}

	if err := os.Rename(tmp.Name(), dst); err != nil {
		return 0, err
	}
	return n, nil
}

//parseTeamConfig accepts a JSON document that may arrive quoted and escaped by form encoders.
//Anything that is still not valid JSON is dropped.
func parseTeamConfig(raw string) json.RawMessage {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	if len(raw) >= 2 && raw[0] == '"' && raw[len(raw)-1] == '"' {
		raw = strings.ReplaceAll(raw[1:len(raw)-1], `\"`, `"`)
	}

	if !json.Valid([]byte(raw)) {
		log.Warnf("api/Upload: ignoring invalid team config '%s'", raw)
		return nil
	}
	return json.RawMessage(raw)
}

func (s *Server) listAnalyses(ctx *gin.Context) {
	recs, err := s.store.List()
	if err != nil {
		log.Errorf("api/Analyses: Error, got '%v'", err)
		detail(ctx, http.StatusInternalServerError, "Could not list analyses")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"analyses": recs, "total": len(recs)})
}

func (s *Server) getAnalysis(ctx *gin.Context) {
	rec, err := s.store.Get(ctx.Param("id"))
	if err != nil {
		log.Errorf("api/Analysis: Error, got '%v'", err)
		detail(ctx, http.StatusInternalServerError, "Could not read analysis")
		return
	}
	if rec == nil {
		detail(ctx, http.StatusNotFound, "Analysis not found")
		return
	}

	ctx.JSON(http.StatusOK, rec)
}

//play streams the uploaded video of an analysis
func (s *Server) play(ctx *gin.Context) {
	rec, err := s.store.Get(ctx.Param("id"))
	if err != nil {
		ctx.Status(http.StatusInternalServerError)
		return
	}
	if rec == nil {
		ctx.Status(http.StatusNotFound)
		return
	}

	if _, err := os.Stat(rec.VideoPath); err != nil {
		if os.IsNotExist(err) {
			ctx.Status(http.StatusNotFound)
			return
		}
		ctx.Status(http.StatusInternalServerError)
		return
	}

	http.ServeFile(ctx.Writer, ctx.Request, rec.VideoPath)
}

func (s *Server) health(ctx *gin.Context) {
	uploads := 0
	if names, err := utils.ListDir(s.opts.UploadsDir); err == nil {
		uploads = len(names)
	}

	analyses, err := s.store.Count()
	if err != nil {
		log.Errorf("api/Health: Error, got '%v'", err)
	}

	ctx.JSON(http.StatusOK, gin.H{
		"status":         "healthy",
		"timestamp":      s.now().Format(time.RFC3339),
		"uploads_count":  uploads,
		"analyses_count": analyses,
	})
}
