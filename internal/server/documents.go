package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"sage/internal/retrieval"
)

type IngestRequest struct {
	Path       string `json:"path"`
	DocumentID string `json:"document_id"`
}

type IngestResponse struct {
	DocumentID string `json:"document_id"`
	Chunks     int    `json:"chunks"`
}

// handleIngest accepts either a multipart upload in field "file" or a JSON
// body naming a file already inside the upload directory.
func (s *Server) handleIngest(c echo.Context) error {
	var path, docID string

	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		saved, err := s.saveUpload(c)
		if err != nil {
			s.logger.Warn("upload failed", zap.Error(err))
			return errorJSON(c, http.StatusBadRequest, err)
		}
		path, docID = saved, c.FormValue("document_id")
	} else {
		var req IngestRequest
		if err := c.Bind(&req); err != nil {
			return errorJSON(c, http.StatusBadRequest, fmt.Errorf("invalid request body"))
		}
		if req.Path == "" {
			return errorJSON(c, http.StatusBadRequest, fmt.Errorf("path field is required"))
		}
		confined, err := s.uploadPath(req.Path)
		if err != nil {
			return errorJSON(c, http.StatusBadRequest, err)
		}
		path, docID = confined, req.DocumentID
	}

	id, err := s.deps.Documents.Ingest(path, docID)
	if err != nil {
		var ingestErr *retrieval.IngestError
		if errors.As(err, &ingestErr) {
			return errorJSON(c, http.StatusUnprocessableEntity, err)
		}
		return errorJSON(c, http.StatusInternalServerError, err)
	}
	doc, err := s.deps.Documents.Document(id)
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, err)
	}
	return c.JSON(http.StatusCreated, IngestResponse{DocumentID: id, Chunks: len(doc.Chunks)})
}

func (s *Server) saveUpload(c echo.Context) (string, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return "", fmt.Errorf("file field is required: %w", err)
	}
	name := filepath.Base(fh.Filename)
	if name == "." || name == string(filepath.Separator) {
		return "", fmt.Errorf("invalid file name %q", fh.Filename)
	}

	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	if err := os.MkdirAll(s.config.UploadDir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	// Random prefix so concurrent uploads of the same name never share a file.
	out, err := os.CreateTemp(s.config.UploadDir, "*-"+name)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	defer out.Close()
	dst := out.Name()

	if _, err := io.Copy(out, src); err != nil {
		return "", fmt.Errorf("write %s: %w", dst, err)
	}
	return dst, nil
}

// uploadPath resolves p against the upload directory and rejects anything
// that lands outside it. Relative paths are taken relative to that directory.
func (s *Server) uploadPath(p string) (string, error) {
	base, err := filepath.Abs(s.config.UploadDir)
	if err != nil {
		return "", fmt.Errorf("resolve upload dir: %w", err)
	}
	target := p
	if !filepath.IsAbs(target) {
		target = filepath.Join(base, target)
	}
	target = filepath.Clean(target)

	rel, err := filepath.Rel(base, target)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q must be inside the upload directory", p)
	}
	return target, nil
}

type ChunksResponse struct {
	Chunks []string `json:"chunks"`
}

func (s *Server) handleChunks(c echo.Context) error {
	docID := c.Param("id")
	doc, err := s.deps.Documents.Document(docID)
	if err != nil {
		return notFoundOr(c, err, retrieval.ErrDocumentNotFound)
	}

	query := c.QueryParam("q")
	if query == "" {
		return c.JSON(http.StatusOK, ChunksResponse{Chunks: doc.Chunks})
	}
	k := 0
	if raw := c.QueryParam("k"); raw != "" {
		if k, err = strconv.Atoi(raw); err != nil || k < 1 {
			return errorJSON(c, http.StatusBadRequest, fmt.Errorf("invalid k %q", raw))
		}
	}
	return c.JSON(http.StatusOK, ChunksResponse{Chunks: s.deps.Documents.Retrieve(docID, query, k)})
}

type AskRequest struct {
	Query string `json:"query"`
}

type AskResponse struct {
	Answer string `json:"answer"`
}

func (s *Server) handleAsk(c echo.Context) error {
	var req AskRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, fmt.Errorf("invalid request body"))
	}
	if strings.TrimSpace(req.Query) == "" {
		return errorJSON(c, http.StatusBadRequest, fmt.Errorf("query field is required"))
	}
	docID := c.Param("id")
	if _, err := s.deps.Documents.Document(docID); err != nil {
		return notFoundOr(c, err, retrieval.ErrDocumentNotFound)
	}
	return c.JSON(http.StatusOK, AskResponse{Answer: s.deps.Documents.Answer(c.Request().Context(), docID, req.Query)})
}
