package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/UnendingLoop/ImageCompressor/internal/model"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/ginext"
)

func TestBatchHandler_Ping(t *testing.T) {
	r := gin.New()
	h := NewBatchHandler(nil, nil)

	r.GET("/ping", func(c *gin.Context) {
		h.SimplePinger((*ginext.Context)(c))
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	require.Equal(t, 200, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "pong", body["message"])
}

func newUploadRequest(t *testing.T, files map[string][]byte) *http.Request {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for name, content := range files {
		fw, err := w.CreateFormFile("images", name)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/images/upload", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestBatchHandler_Upload(t *testing.T) {
	tests := []struct {
		name       string
		req        *http.Request
		mock       *mockBatchService
		wantStatus int
	}{
		{
			name: "success",
			req:  newUploadRequest(t, map[string][]byte{"a.jpg": []byte("img"), "b.png": []byte("img")}),
			mock: &mockBatchService{
				seedFn: func(ctx context.Context, name string, blob []byte) error {
					require.NotEmpty(t, blob)
					return nil
				},
			},
			wantStatus: 201,
		},
		{
			name:       "no files",
			req:        newUploadRequest(t, nil),
			mock:       &mockBatchService{},
			wantStatus: 400,
		},
		{
			name: "all files rejected",
			req:  newUploadRequest(t, map[string][]byte{"a.jpg": []byte("junk")}),
			mock: &mockBatchService{
				seedFn: func(ctx context.Context, name string, blob []byte) error {
					return model.ErrDecode
				},
			},
			wantStatus: 400,
		},
		{
			name: "partial failure still accepts",
			req:  newUploadRequest(t, map[string][]byte{"good.jpg": []byte("img"), "bad.jpg": []byte("junk")}),
			mock: &mockBatchService{
				seedFn: func(ctx context.Context, name string, blob []byte) error {
					if name == "bad.jpg" {
						return model.ErrDecode
					}
					return nil
				},
			},
			wantStatus: 201,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			h := NewBatchHandler(tt.mock, nil)

			r.POST("/images/upload", func(c *gin.Context) {
				h.Upload((*ginext.Context)(c))
			})

			w := httptest.NewRecorder()
			r.ServeHTTP(w, tt.req)

			require.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestBatchHandler_GetBatch(t *testing.T) {
	mock := &mockBatchService{
		snapshotFn: func() []model.ImageRecord {
			return []model.ImageRecord{{Name: "a.png"}, {Name: "b.png"}}
		},
	}

	r := gin.New()
	h := NewBatchHandler(mock, nil)
	r.GET("/images", func(c *gin.Context) {
		h.GetBatch((*ginext.Context)(c))
	})

	req := httptest.NewRequest(http.MethodGet, "/images", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, 200, w.Code)

	var body struct {
		Params model.BatchParams `json:"params"`
		Images []struct {
			Name string `json:"name"`
		} `json:"images"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Images, 2)
	require.Equal(t, "a.png", body.Images[0].Name)
	require.Equal(t, model.FormatWebP, body.Params.OutputFormat)
}

func TestBatchHandler_SetParams(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		mock       *mockBatchService
		wantStatus int
	}{
		{
			name: "success merges onto current",
			body: `{"quality":0.5}`,
			mock: &mockBatchService{
				setParamsFn: func(ctx context.Context, params model.BatchParams) error {
					// нетронутые поля остаются от текущих параметров
					require.Equal(t, 0.5, params.Quality)
					require.Equal(t, model.FormatWebP, params.OutputFormat)
					require.Nil(t, params.TargetWidth)
					return nil
				},
			},
			wantStatus: 200,
		},
		{
			name: "zero dimension clears the axis",
			body: `{"target_width":0,"target_height":200}`,
			mock: &mockBatchService{
				setParamsFn: func(ctx context.Context, params model.BatchParams) error {
					require.Nil(t, params.TargetWidth)
					require.NotNil(t, params.TargetHeight)
					require.Equal(t, 200, *params.TargetHeight)
					return nil
				},
			},
			wantStatus: 200,
		},
		{
			name: "format is normalized",
			body: `{"output_format":" JPEG "}`,
			mock: &mockBatchService{
				setParamsFn: func(ctx context.Context, params model.BatchParams) error {
					require.Equal(t, model.FormatJPEG, params.OutputFormat)
					return nil
				},
			},
			wantStatus: 200,
		},
		{
			name:       "broken body",
			body:       `{"quality":`,
			mock:       &mockBatchService{},
			wantStatus: 400,
		},
		{
			name: "validation error from service",
			body: `{"quality":2.0}`,
			mock: &mockBatchService{
				setParamsFn: func(ctx context.Context, params model.BatchParams) error {
					return model.ErrBadQuality
				},
			},
			wantStatus: 400,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			h := NewBatchHandler(tt.mock, nil)

			r.PUT("/images/params", func(c *gin.Context) {
				h.SetParams((*ginext.Context)(c))
			})

			req := httptest.NewRequest(http.MethodPut, "/images/params", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			r.ServeHTTP(w, req)
			require.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestBatchHandler_SetQuality(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		mock       *mockBatchService
		wantStatus int
	}{
		{
			name: "success",
			body: `{"quality":0.3}`,
			mock: &mockBatchService{
				setQualityFn: func(ctx context.Context, name string, quality float64) error {
					require.Equal(t, "a.png", name)
					require.Equal(t, 0.3, quality)
					return nil
				},
			},
			wantStatus: 202,
		},
		{
			name: "unknown image",
			body: `{"quality":0.3}`,
			mock: &mockBatchService{
				setQualityFn: func(ctx context.Context, name string, quality float64) error {
					return model.ErrImageNotFound
				},
			},
			wantStatus: 404,
		},
		{
			name:       "broken body",
			body:       `not-json`,
			mock:       &mockBatchService{},
			wantStatus: 400,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			h := NewBatchHandler(tt.mock, nil)

			r.PATCH("/images/:name/quality", func(c *gin.Context) {
				h.SetQuality((*ginext.Context)(c))
			})

			req := httptest.NewRequest(http.MethodPatch, "/images/a.png/quality", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			r.ServeHTTP(w, req)
			require.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestBatchHandler_Recompress(t *testing.T) {
	mock := &mockBatchService{
		recompressFn: func(ctx context.Context, name string, quality float64, width, height *int) error {
			require.Equal(t, "a.png", name)
			require.Equal(t, 0.4, quality)
			require.NotNil(t, width)
			require.Equal(t, 300, *width)
			require.Nil(t, height) // не передали - берётся из глобальных (там nil)
			return nil
		},
	}

	r := gin.New()
	h := NewBatchHandler(mock, nil)
	r.POST("/images/:name/recompress", func(c *gin.Context) {
		h.Recompress((*ginext.Context)(c))
	})

	req := httptest.NewRequest(http.MethodPost, "/images/a.png/recompress",
		strings.NewReader(`{"quality":0.4,"width":300}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)
	require.Equal(t, 202, w.Code)
}

func TestBatchHandler_SetMetadata(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		mock       *mockBatchService
		wantStatus int
	}{
		{
			name: "success",
			body: `{"field":"title","value":"Sunset"}`,
			mock: &mockBatchService{
				setMetadataFn: func(name, field, value string) error {
					require.Equal(t, "title", field)
					require.Equal(t, "Sunset", value)
					return nil
				},
			},
			wantStatus: 204,
		},
		{
			name: "unknown field",
			body: `{"field":"gps","value":"55.75"}`,
			mock: &mockBatchService{
				setMetadataFn: func(name, field, value string) error {
					return model.ErrBadField
				},
			},
			wantStatus: 400,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			h := NewBatchHandler(tt.mock, nil)

			r.PATCH("/images/:name/metadata", func(c *gin.Context) {
				h.SetMetadata((*ginext.Context)(c))
			})

			req := httptest.NewRequest(http.MethodPatch, "/images/a.png/metadata", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			r.ServeHTTP(w, req)
			require.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestBatchHandler_Rename(t *testing.T) {
	mock := &mockBatchService{
		setRenameFn: func(name, target string) error {
			require.Equal(t, "a.png", name)
			require.Equal(t, "vacation", target)
			return nil
		},
	}

	r := gin.New()
	h := NewBatchHandler(mock, nil)
	r.PATCH("/images/:name/rename", func(c *gin.Context) {
		h.Rename((*ginext.Context)(c))
	})

	req := httptest.NewRequest(http.MethodPatch, "/images/a.png/rename",
		strings.NewReader(`{"rename":"vacation"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)
	require.Equal(t, 204, w.Code)
}

func TestBatchHandler_DownloadOne(t *testing.T) {
	tests := []struct {
		name       string
		mock       *mockExportService
		wantStatus int
	}{
		{
			name: "success",
			mock: &mockExportService{
				exportSingleFn: func(ctx context.Context, name string) (string, []byte, string, error) {
					return "a.webp", []byte("blob"), "image/webp", nil
				},
			},
			wantStatus: 200,
		},
		{
			name: "not ready",
			mock: &mockExportService{
				exportSingleFn: func(ctx context.Context, name string) (string, []byte, string, error) {
					return "", nil, "", model.ErrResultNotReady
				},
			},
			wantStatus: 404,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			h := NewBatchHandler(nil, tt.mock)

			r.GET("/images/:name/download", func(c *gin.Context) {
				h.DownloadOne((*ginext.Context)(c))
			})

			req := httptest.NewRequest(http.MethodGet, "/images/a.png/download", nil)
			w := httptest.NewRecorder()

			r.ServeHTTP(w, req)
			require.Equal(t, tt.wantStatus, w.Code)

			if tt.wantStatus == 200 {
				require.Equal(t, `attachment; filename="a.webp"`, w.Header().Get("Content-Disposition"))
				require.Equal(t, "image/webp", w.Header().Get("Content-Type"))
				require.Equal(t, "blob", w.Body.String())
			}
		})
	}
}

func TestBatchHandler_DownloadAll(t *testing.T) {
	mock := &mockExportService{
		exportBatchFn: func(ctx context.Context, names ...string) (string, []byte, []string, error) {
			require.Equal(t, []string{"a.png", "b.png"}, names)
			return model.ArchiveName, []byte("zip-bytes"), []string{"b.png"}, nil
		},
	}

	r := gin.New()
	h := NewBatchHandler(nil, mock)
	r.GET("/images/download", func(c *gin.Context) {
		h.DownloadAll((*ginext.Context)(c))
	})

	req := httptest.NewRequest(http.MethodGet, "/images/download?names=a.png&names=b.png", nil)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)
	require.Equal(t, 200, w.Code)
	require.Equal(t, "b.png", w.Header().Get("X-Skipped-Images"))
	require.Equal(t, "application/zip", w.Header().Get("Content-Type"))
	require.Equal(t, "zip-bytes", w.Body.String())
}

func TestBatchHandler_DownloadAll_Empty(t *testing.T) {
	mock := &mockExportService{
		exportBatchFn: func(ctx context.Context, names ...string) (string, []byte, []string, error) {
			return "", nil, nil, model.ErrEmptyBatch
		},
	}

	r := gin.New()
	h := NewBatchHandler(nil, mock)
	r.GET("/images/download", func(c *gin.Context) {
		h.DownloadAll((*ginext.Context)(c))
	})

	req := httptest.NewRequest(http.MethodGet, "/images/download", nil)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)
	require.Equal(t, 404, w.Code)
}

func TestBatchHandler_ClearBatch(t *testing.T) {
	cleared := false
	mock := &mockBatchService{clearFn: func() { cleared = true }}

	r := gin.New()
	h := NewBatchHandler(mock, nil)
	r.DELETE("/images", func(c *gin.Context) {
		h.ClearBatch((*ginext.Context)(c))
	})

	req := httptest.NewRequest(http.MethodDelete, "/images", nil)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)
	require.Equal(t, 204, w.Code)
	require.True(t, cleared)
}
