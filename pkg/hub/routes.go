package hub

import (
	"net/http"

	"github.com/gorilla/mux"
)

const (
	ProjectRegexp = `[a-z0-9]+(?:[._-][a-z0-9]+)*`
	RunRegexp     = `[a-zA-Z0-9_][a-zA-Z0-9._-]{0,127}`
	DigestRegexp  = `[A-Za-z][A-Za-z0-9]*(?:[-_+.][A-Za-z][A-Za-z0-9]*)*[:][[:xdigit:]]{32,}`
)

const MaxRunContentRead = int64(4 * 1024 * 1024)

func (s *Hub) route() http.Handler {
	mux := mux.NewRouter()
	mux = mux.StrictSlash(true)
	mux.Methods("GET").Path("/healthz").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	// global index
	mux.Methods("GET").Path("/").HandlerFunc(s.GetGlobalIndex)

	project := mux.PathPrefix("/{project:" + ProjectRegexp + "}").Subrouter()
	// index
	project.Methods("GET").Path("/index").HandlerFunc(s.GetIndex)
	// runs
	project.Methods("POST").Path("/runs").HandlerFunc(s.PostRun)
	runs := project.PathPrefix("/runs").Subrouter()
	runs.Methods("GET").Path("/{name:" + RunRegexp + "}").HandlerFunc(s.GetRun)
	runs.Methods("PUT").Path("/{name:" + RunRegexp + "}").HandlerFunc(MaxBytesReadHandler(s.PutRun, MaxRunContentRead))
	runs.Methods("POST").Path("/{name:" + RunRegexp + "}").HandlerFunc(s.PostRunStatus)
	runs.Methods("DELETE").Path("/{name:" + RunRegexp + "}").HandlerFunc(s.DeleteRun)
	// artifacts
	artifacts := project.PathPrefix("/artifacts").Subrouter()
	artifacts.Methods("HEAD").Path("/{digest:" + DigestRegexp + "}").HandlerFunc(s.HeadArtifact)
	artifacts.Methods("GET").Path("/{digest:" + DigestRegexp + "}").HandlerFunc(s.GetArtifact)
	artifacts.Methods("PUT").Path("/{digest:" + DigestRegexp + "}").HandlerFunc(s.PutArtifact)

	return mux
}

func MaxBytesReadHandler(h http.HandlerFunc, n int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r2 := *r
		r2.Body = http.MaxBytesReader(w, r.Body, n)
		h.ServeHTTP(w, &r2)
	}
}
