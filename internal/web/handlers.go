package web

import (
	"crypto/subtle"
	"fmt"
	"math"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	modeNearest = "nearest"
	modeRadius  = "radius"
)

var allowedExt = map[string]bool{".csv": true, ".json": true, ".xlsx": true}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) loginPage(c *gin.Context) {
	c.HTML(http.StatusOK, "login.html", gin.H{})
}

func (s *Server) login(c *gin.Context) {
	username := c.PostForm("username")
	password := c.PostForm("password")

	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.cfg.LoginUser)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(s.cfg.LoginPass)) == 1
	if !userOK || !passOK {
		s.logger.Warn().Str("username", username).Msg("failed login")
		c.HTML(http.StatusOK, "login.html", gin.H{"Error": "Invalid username or password"})
		return
	}

	session := sessions.Default(c)
	session.Set("user", username)
	if err := session.Save(); err != nil {
		s.logger.Error().Err(err).Msg("save session")
		c.HTML(http.StatusInternalServerError, "login.html", gin.H{"Error": "Could not start session"})
		return
	}
	c.Redirect(http.StatusFound, "/")
}

func (s *Server) logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	if err := session.Save(); err != nil {
		s.logger.Error().Err(err).Msg("clear session")
	}
	c.Redirect(http.StatusFound, "/login")
}

func (s *Server) index(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", gin.H{})
}

// respond renders the index page for browsers and JSON for API clients.
func respond(c *gin.Context, status int, h gin.H) {
	if c.NegotiateFormat(gin.MIMEHTML, gin.MIMEJSON) == gin.MIMEJSON {
		h["ok"] = status < http.StatusBadRequest
		c.JSON(status, h)
		return
	}
	c.HTML(status, "index.html", h)
}

func (s *Server) run(c *gin.Context) {
	mode := c.DefaultPostForm("mode", modeNearest)
	if mode != modeNearest && mode != modeRadius {
		respond(c, http.StatusBadRequest, gin.H{"Message": "Unknown mode."})
		return
	}

	var radiusKm float64
	if mode == modeRadius {
		v, err := strconv.ParseFloat(strings.TrimSpace(c.PostForm("radius_km")), 64)
		if err != nil || v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			respond(c, http.StatusBadRequest, gin.H{"Message": "Radius must be a non-negative number of kilometers."})
			return
		}
		radiusKm = v
	}

	if err := os.MkdirAll(s.cfg.UploadDir, 0o755); err != nil {
		s.logger.Error().Err(err).Msg("create upload dir")
		respond(c, http.StatusInternalServerError, gin.H{"Message": "Could not store upload."})
		return
	}
	if err := os.MkdirAll(s.cfg.OutputDir, 0o755); err != nil {
		s.logger.Error().Err(err).Msg("create output dir")
		respond(c, http.StatusInternalServerError, gin.H{"Message": "Could not store upload."})
		return
	}

	// An empty sheet name selects the first sheet of a separately uploaded
	// workbook. A single workbook falls back to the configured sheet names.
	in := input{
		mode:           mode,
		radiusKm:       radiusKm,
		sourceSheet:    strings.TrimSpace(c.PostForm("source_sheet")),
		referenceSheet: strings.TrimSpace(c.PostForm("reference_sheet")),
	}

	if file, err := c.FormFile("input_file"); err == nil {
		if strings.ToLower(filepath.Ext(file.Filename)) != ".xlsx" {
			respond(c, http.StatusBadRequest, gin.H{"Message": "A single upload must be an .xlsx workbook."})
			return
		}
		path, err := s.saveUpload(c, file)
		if err != nil {
			respond(c, http.StatusInternalServerError, gin.H{"Message": "Could not store upload."})
			return
		}
		in.workbook = path
		if in.sourceSheet == "" {
			in.sourceSheet = s.cfg.SourceSheet
		}
		if in.referenceSheet == "" {
			in.referenceSheet = s.cfg.ReferenceSheet
		}
	} else {
		src, err1 := c.FormFile("source_file")
		ref, err2 := c.FormFile("reference_file")
		if err1 != nil || err2 != nil {
			respond(c, http.StatusBadRequest, gin.H{"Message": "Please choose a workbook or a source and a reference file."})
			return
		}
		for _, f := range []*multipart.FileHeader{src, ref} {
			if !allowedExt[strings.ToLower(filepath.Ext(f.Filename))] {
				respond(c, http.StatusBadRequest, gin.H{"Message": fmt.Sprintf("Unsupported file type: %s", f.Filename)})
				return
			}
		}
		if in.sourcePath, err = s.saveUpload(c, src); err != nil {
			respond(c, http.StatusInternalServerError, gin.H{"Message": "Could not store upload."})
			return
		}
		if in.referencePath, err = s.saveUpload(c, ref); err != nil {
			respond(c, http.StatusInternalServerError, gin.H{"Message": "Could not store upload."})
			return
		}
	}

	job, ctx := s.jobs.Create(s.baseCtx)
	go s.processJob(ctx, job, in)

	respond(c, http.StatusOK, gin.H{"JobID": job.ID, "job_id": job.ID, "Message": "Job started..."})
}

// saveUpload stores the file under a uuid-prefixed name, keeping the
// original base name so it can serve as the dataset label.
func (s *Server) saveUpload(c *gin.Context, file *multipart.FileHeader) (string, error) {
	name := filepath.Base(file.Filename)
	dir := filepath.Join(s.cfg.UploadDir, uuid.New().String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		s.logger.Error().Err(err).Msg("create upload dir")
		return "", err
	}
	dst := filepath.Join(dir, name)
	if err := c.SaveUploadedFile(file, dst); err != nil {
		s.logger.Error().Err(err).Str("file", name).Msg("save upload")
		return "", err
	}
	return dst, nil
}

func (s *Server) logs(c *gin.Context) {
	job := s.jobs.Get(c.Query("job_id"))
	if job == nil {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "Job not found"})
		return
	}

	snap := job.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"ok":       true,
		"logs":     snap.Logs,
		"status":   snap.Status,
		"progress": snap.Progress,
	})
}

func (s *Server) status(c *gin.Context) {
	job := s.jobs.Get(c.Query("job_id"))
	if job == nil {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "Job not found"})
		return
	}

	snap := job.Snapshot()
	res := gin.H{
		"ok":     true,
		"status": snap.Status,
		"error":  snap.Error,
	}
	if snap.Result != nil {
		res["result"] = snap.Result
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) cancel(c *gin.Context) {
	job := s.jobs.Get(c.Query("job_id"))
	if job == nil {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "Job not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": job.Cancel()})
}

func (s *Server) download(c *gin.Context) {
	filename := c.Param("filename")
	if filename == "" || filename != filepath.Base(filename) || strings.HasPrefix(filename, ".") {
		c.String(http.StatusBadRequest, "invalid file name")
		return
	}

	target := filepath.Join(s.cfg.OutputDir, filename)
	if _, err := os.Stat(target); err != nil {
		c.String(http.StatusNotFound, "result not found")
		return
	}
	c.FileAttachment(target, filename)
}
