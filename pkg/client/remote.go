package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/opencontainers/go-digest"

	"github.com/tnissen375/dstack/pkg/errors"
	"github.com/tnissen375/dstack/pkg/types"
)

// HubClient speaks the hub HTTP API. Error responses carry an ErrorInfo
// json body which is decoded back into the typed error.
type HubClient struct {
	Client        *http.Client
	Addr          string
	Authorization string
}

func (t *HubClient) GetGlobalIndex(ctx context.Context, search string) (*types.Index, error) {
	index := &types.Index{}
	path := "/?" + url.Values{"search": {search}}.Encode()
	if _, err := t.request(ctx, "GET", path, nil, nil, index); err != nil {
		return nil, err
	}
	return index, nil
}

func (t *HubClient) GetIndex(ctx context.Context, project string, search string) (*types.Index, error) {
	index := &types.Index{}
	path := "/" + project + "/index?" + url.Values{"search": {search}}.Encode()
	if _, err := t.request(ctx, "GET", path, nil, nil, index); err != nil {
		return nil, err
	}
	return index, nil
}

// AllocateRunName asks the hub for the next run name of a workflow.
func (t *HubClient) AllocateRunName(ctx context.Context, project string, workflow string) (string, error) {
	run := &types.Run{}
	path := "/" + project + "/runs?" + url.Values{"workflow": {workflow}}.Encode()
	if _, err := t.request(ctx, "POST", path, nil, nil, run); err != nil {
		return "", err
	}
	return run.Name, nil
}

func (t *HubClient) GetRun(ctx context.Context, project string, name string) (*types.Run, error) {
	run := &types.Run{}
	path := "/" + project + "/runs/" + name
	if _, err := t.request(ctx, "GET", path, nil, nil, run); err != nil {
		return nil, err
	}
	return run, nil
}

func (t *HubClient) PutRun(ctx context.Context, project string, name string, run types.Run) error {
	header := map[string]string{
		"Content-Type": types.MediaTypeRunJson,
	}
	path := "/" + project + "/runs/" + name
	_, err := t.request(ctx, "PUT", path, header, run, nil)
	return err
}

func (t *HubClient) SetRunStatus(ctx context.Context, project string, name string, status string) error {
	path := "/" + project + "/runs/" + name + "?" + url.Values{"status": {status}}.Encode()
	_, err := t.request(ctx, "POST", path, nil, nil, nil)
	return err
}

func (t *HubClient) DeleteRun(ctx context.Context, project string, name string) error {
	path := "/" + project + "/runs/" + name
	_, err := t.request(ctx, "DELETE", path, nil, nil, nil)
	return err
}

func (t *HubClient) HeadArtifact(ctx context.Context, project string, digest digest.Digest) (bool, error) {
	path := "/" + project + "/artifacts/" + digest.String()
	resp, err := t.request(ctx, "HEAD", path, nil, nil, nil)
	if err != nil {
		return false, err
	}
	return resp.StatusCode == http.StatusOK, nil
}

func (t *HubClient) UploadArtifact(ctx context.Context, project string, desc types.Descriptor, body io.Reader) error {
	header := map[string]string{
		"Content-Type": desc.MediaType,
	}
	path := "/" + project + "/artifacts/" + desc.Digest.String()
	_, err := t.request(ctx, "PUT", path, header, body, nil)
	return err
}

// GetArtifact streams an artifact blob. Presigned redirects from the
// hub are followed transparently.
func (t *HubClient) GetArtifact(ctx context.Context, project string, digest digest.Digest) (io.ReadCloser, int64, error) {
	path := "/" + project + "/artifacts/" + digest.String()
	resp, err := t.request(ctx, "GET", path, nil, nil, nil)
	if err != nil {
		return nil, -1, err
	}
	return resp.Body, resp.ContentLength, nil
}

func (t *HubClient) request(ctx context.Context, method, path string, header map[string]string, body any, into any) (*http.Response, error) {
	requrl := t.Addr + path

	var reqbody io.Reader
	switch val := body.(type) {
	case io.Reader:
		reqbody = val
	case nil:
		reqbody = nil
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return nil, err
		}
		reqbody = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, requrl, reqbody)
	if err != nil {
		return nil, err
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	if t.Authorization != "" {
		req.Header.Set("Authorization", t.Authorization)
	}
	httpclient := t.Client
	if httpclient == nil {
		httpclient = http.DefaultClient
	}
	resp, err := httpclient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 && req.Method != "HEAD" {
		defer resp.Body.Close()
		var apierr errors.ErrorInfo
		if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
			if err := json.NewDecoder(resp.Body).Decode(&apierr); err != nil {
				return nil, err
			}
			apierr.HttpStatus = resp.StatusCode
		} else {
			bodystr, _ := io.ReadAll(resp.Body)
			apierr.HttpStatus = resp.StatusCode
			apierr.Message = string(bodystr)
		}
		return nil, apierr
	}
	if into != nil {
		defer resp.Body.Close()
		if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
			return nil, err
		}
	}
	return resp, nil
}
