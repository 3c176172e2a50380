package gateway

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/akyaiy/GoSally-connector/internal/connector/application"
	"github.com/akyaiy/GoSally-connector/internal/core/utils"
	"github.com/akyaiy/GoSally-connector/internal/server/rpc"
	"github.com/google/uuid"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

var (
	errNoPacket = errors.New("request carries no jtlrpc packet")
	// errEncoding marks a Content-Encoding the gateway cannot decode.
	errEncoding = errors.New("unsupported content encoding")
)

func (gs *GatewayServer) Handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := gs.log.With(slog.Group("connection", slog.String("ip", r.RemoteAddr)))

	if gs.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, gs.maxUpload)
	}
	body, err := decodeBody(r)
	if err != nil {
		gs.fail(w, log, err)
		return
	}
	defer body.Close()
	r.Body = body

	call, form, err := gs.readCall(r)
	if form != nil {
		defer form.RemoveAll()
	}
	if err != nil {
		if call != nil && call.Archive != "" {
			os.Remove(call.Archive)
		}
		gs.fail(w, log, err)
		return
	}

	log.Debug("new request", slog.Bool("archive", call.Archive != ""), slog.Int("size", len(call.Body)))
	if err := rpc.WriteRaw(w, gs.app.Handle(ctx, call)); err != nil {
		log.Debug("cannot write response", slog.String("err", err.Error()))
	}
}

func (gs *GatewayServer) fail(w http.ResponseWriter, log *slog.Logger, err error) {
	status := http.StatusBadRequest
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		status = http.StatusRequestEntityTooLarge
	case errors.Is(err, errEncoding):
		status = http.StatusUnsupportedMediaType
	}
	log.Info("invalid request received", slog.Int("status", status), slog.String("err", err.Error()))
	utils.WriteJSONError(w, status, err.Error())
}

// decodeBody unwraps the Content-Encoding the host compressed the body with.
func decodeBody(r *http.Request) (io.ReadCloser, error) {
	switch enc := strings.ToLower(strings.TrimSpace(r.Header.Get("Content-Encoding"))); enc {
	case "", "identity":
		return r.Body, nil
	case "gzip", "x-gzip":
		zr, err := gzip.NewReader(r.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip body: %w", err)
		}
		return zr, nil
	case "deflate":
		return flate.NewReader(r.Body), nil
	case "zstd":
		zr, err := zstd.NewReader(r.Body)
		if err != nil {
			return nil, fmt.Errorf("zstd body: %w", err)
		}
		return zr.IOReadCloser(), nil
	default:
		return nil, fmt.Errorf("%w: %q", errEncoding, enc)
	}
}

// readCall pulls the packet, the session id and the optional archive out of
// a form post, a multipart upload or a raw JSON body.
func (gs *GatewayServer) readCall(r *http.Request) (*application.Call, *multipart.Form, error) {
	call := &application.Call{}
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	var form *multipart.Form
	switch mediaType {
	case "multipart/form-data":
		if err := r.ParseMultipartForm(gs.memory); err != nil {
			return nil, nil, fmt.Errorf("parse multipart form: %w", err)
		}
		form = r.MultipartForm
		call.Body = []byte(r.FormValue(FieldPacket))
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return nil, nil, fmt.Errorf("parse form: %w", err)
		}
		call.Body = []byte(r.FormValue(FieldPacket))
	default:
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, nil, fmt.Errorf("read body: %w", err)
		}
		call.Body = body
		if packet := r.URL.Query().Get(FieldPacket); len(strings.TrimSpace(string(body))) == 0 && packet != "" {
			call.Body = []byte(packet)
		}
	}

	if len(strings.TrimSpace(string(call.Body))) == 0 {
		return nil, form, errNoPacket
	}

	call.SessionID = r.FormValue(FieldSession)
	if call.SessionID == "" {
		call.SessionID = r.Header.Get(HeaderSession)
	}

	if form != nil {
		archive, err := gs.saveFirstFile(form)
		if err != nil {
			return nil, form, err
		}
		call.Archive = archive
	}
	return call, form, nil
}

// saveFirstFile copies the first uploaded file into a temp file owned by the call.
func (gs *GatewayServer) saveFirstFile(form *multipart.Form) (string, error) {
	fields := make([]string, 0, len(form.File))
	for name, files := range form.File {
		if len(files) > 0 {
			fields = append(fields, name)
		}
	}
	if len(fields) == 0 {
		return "", nil
	}
	sort.Strings(fields)
	header := form.File[fields[0]][0]

	src, err := header.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	ext := filepath.Ext(header.Filename)
	if strings.ContainsAny(ext, `*/\`) {
		ext = ""
	}
	dst, err := os.CreateTemp(gs.tempDir, uuid.NewString()+"_*"+ext)
	if err != nil {
		return "", fmt.Errorf("store upload: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(dst.Name())
		return "", fmt.Errorf("store upload: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(dst.Name())
		return "", fmt.Errorf("store upload: %w", err)
	}
	return dst.Name(), nil
}
