package hub

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/opencontainers/go-digest"

	"github.com/tnissen375/dstack/pkg/errors"
	"github.com/tnissen375/dstack/pkg/types"
)

const DefaultSequencePath = "data/hub.sequence"

type Hub struct {
	Store    *RunStore
	Sequence *RunNameSequence
}

func Run(ctx context.Context, opts *Options) error {
	log := stdr.NewWithOptions(log.Default(), stdr.Options{LogCaller: stdr.Error})
	ctx = logr.NewContext(ctx, log)

	hub, err := NewHub(ctx, opts)
	if err != nil {
		return err
	}
	defer hub.Sequence.Close()

	var handler http.Handler = handlers.CombinedLoggingHandler(os.Stdout, hub.route())
	if opts.OIDC.Issuer != "" {
		handler, err = NewOIDCAuthFilter(ctx, opts.OIDC.Issuer, handler)
		if err != nil {
			return err
		}
	}

	server := http.Server{
		Addr:    opts.Listen,
		Handler: handler,
		BaseContext: func(l net.Listener) context.Context {
			return ctx
		},
	}
	go func() {
		<-ctx.Done()
		server.Shutdown(ctx)
	}()
	if opts.TLS.CertFile != "" && opts.TLS.KeyFile != "" {
		log.Info("hub listening", "https", opts.Listen)
		return server.ListenAndServeTLS(opts.TLS.CertFile, opts.TLS.KeyFile)
	}
	log.Info("hub listening", "http", opts.Listen)
	return server.ListenAndServe()
}

func NewHub(ctx context.Context, opts *Options) (*Hub, error) {
	var storage FSProvider
	if opts.S3 != nil && opts.S3.URL != "" {
		s3storage, err := NewS3StorageProvider(ctx, opts.S3)
		if err != nil {
			return nil, err
		}
		storage = s3storage
	} else {
		localstorage, err := NewLocalFSProvider(opts.Local)
		if err != nil {
			return nil, err
		}
		storage = localstorage
	}
	sequencePath := opts.SequencePath
	if sequencePath == "" {
		sequencePath = DefaultSequencePath
	}
	sequence, err := OpenRunNameSequence(sequencePath)
	if err != nil {
		return nil, err
	}
	return &Hub{
		Store: &RunStore{
			Storage:        storage,
			EnableRedirect: opts.EnableRedirect,
		},
		Sequence: sequence,
	}, nil
}

// Handler returns the hub routes without any filters, for embedding
// and tests.
func (s *Hub) Handler() http.Handler {
	return s.route()
}

func (s *Hub) GetGlobalIndex(w http.ResponseWriter, r *http.Request) {
	index, err := s.Store.GetGlobalIndex(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		ResponseError(w, err)
		return
	}
	ResponseOK(w, index)
}

func (s *Hub) GetIndex(w http.ResponseWriter, r *http.Request) {
	project, _ := GetProjectRun(r)
	index, err := s.Store.GetIndex(r.Context(), project, r.URL.Query().Get("search"))
	if err != nil {
		ResponseError(w, err)
		return
	}
	ResponseOK(w, index)
}

// PostRun allocates the next run name for a workflow.
func (s *Hub) PostRun(w http.ResponseWriter, r *http.Request) {
	project, _ := GetProjectRun(r)
	workflow := r.URL.Query().Get("workflow")
	if workflow == "" {
		ResponseError(w, errors.NewParameterInvalidError("workflow not set"))
		return
	}
	name, err := s.Sequence.Next(project, workflow)
	if err != nil {
		ResponseError(w, errors.NewInternalError(err))
		return
	}
	ResponseOK(w, types.Run{Name: name, Project: project, Workflow: workflow})
}

func (s *Hub) GetRun(w http.ResponseWriter, r *http.Request) {
	project, name := GetProjectRun(r)
	run, err := s.Store.GetRun(r.Context(), project, name)
	if err != nil {
		ResponseError(w, err)
		return
	}
	ResponseOK(w, run)
}

func (s *Hub) PutRun(w http.ResponseWriter, r *http.Request) {
	project, name := GetProjectRun(r)
	var run types.Run
	if err := json.NewDecoder(r.Body).Decode(&run); err != nil {
		ResponseError(w, errors.NewRunInvalidError(err))
		return
	}
	if err := s.Store.PutRun(r.Context(), project, name, run); err != nil {
		ResponseError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *Hub) PostRunStatus(w http.ResponseWriter, r *http.Request) {
	project, name := GetProjectRun(r)
	status := r.URL.Query().Get("status")
	switch status {
	case types.StatusSubmitted, types.StatusRunning, types.StatusDone, types.StatusFailed, types.StatusStopped:
	default:
		ResponseError(w, errors.NewParameterInvalidError("status invalid: "+status))
		return
	}
	if err := s.Store.SetRunStatus(r.Context(), project, name, status); err != nil {
		ResponseError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Hub) DeleteRun(w http.ResponseWriter, r *http.Request) {
	project, name := GetProjectRun(r)
	if err := s.Store.DeleteRun(r.Context(), project, name); err != nil {
		ResponseError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Hub) HeadArtifact(w http.ResponseWriter, r *http.Request) {
	ArtifactDigestFun(w, r, func(ctx context.Context, project string, digest digest.Digest) {
		ok, err := s.Store.ExistsArtifact(ctx, project, digest)
		if err != nil {
			ResponseError(w, err)
			return
		}
		if ok {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

func (s *Hub) GetArtifact(w http.ResponseWriter, r *http.Request) {
	ArtifactDigestFun(w, r, func(ctx context.Context, project string, digest digest.Digest) {
		location, err := s.Store.GetArtifactLocation(ctx, project, digest)
		if err != nil {
			if !errors.IsErrCode(err, errors.ErrCodeUnsupported) {
				ResponseError(w, err)
				return
			}
			content, err := s.Store.GetArtifact(ctx, project, digest)
			if err != nil {
				ResponseError(w, err)
				return
			}
			defer content.Close()
			w.Header().Set("Content-Length", strconv.FormatInt(content.ContentLength, 10))
			w.Header().Set("Content-Type", content.ContentType)
			w.WriteHeader(http.StatusOK)
			io.Copy(w, content)
			return
		}
		w.Header().Add("Location", location)
		w.WriteHeader(http.StatusFound)
	})
}

func (s *Hub) PutArtifact(w http.ResponseWriter, r *http.Request) {
	ArtifactDigestFun(w, r, func(ctx context.Context, project string, digest digest.Digest) {
		contentType := r.Header.Get("Content-Type")
		if contentType == "" {
			ResponseError(w, errors.NewContentTypeInvalidError("empty"))
			return
		}
		content := BlobContent{
			Content:       r.Body,
			ContentLength: r.ContentLength,
			ContentType:   contentType,
		}
		if err := s.Store.PutArtifact(ctx, project, digest, content); err != nil {
			ResponseError(w, err)
			return
		}
		w.WriteHeader(http.StatusCreated)
	})
}

func GetProjectRun(r *http.Request) (string, string) {
	vars := mux.Vars(r)
	return vars["project"], vars["name"]
}

func ArtifactDigestFun(w http.ResponseWriter, r *http.Request, fun func(ctx context.Context, project string, digest digest.Digest)) {
	project, _ := GetProjectRun(r)
	digeststr := mux.Vars(r)["digest"]
	parsed, err := digest.Parse(digeststr)
	if err != nil {
		ResponseError(w, errors.NewDigestInvalidError(digeststr))
		return
	}
	fun(r.Context(), project, parsed)
}

// NewOIDCAuthFilter rejects requests whose bearer token does not verify
// against the issuer. The health endpoint stays open for probes.
func NewOIDCAuthFilter(ctx context.Context, issuer string, next http.Handler) (http.Handler, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, err
	}
	verifier := provider.Verifier(&oidc.Config{SkipClientIDCheck: true})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" {
			next.ServeHTTP(w, r)
			return
		}
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token == "" {
			ResponseError(w, errors.NewUnauthorizedError("bearer token required"))
			return
		}
		if _, err := verifier.Verify(r.Context(), token); err != nil {
			ResponseError(w, errors.NewUnauthorizedError(err.Error()))
			return
		}
		next.ServeHTTP(w, r)
	}), nil
}
