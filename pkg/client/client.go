package client

import (
	"context"
	"crypto/tls"
	"net/http"

	"github.com/tnissen375/dstack/pkg/types"
)

type Client struct {
	Remote HubClient
}

func NewClient(addr string, auth string, insecure bool) *Client {
	httpclient := http.DefaultClient
	if insecure {
		httpclient = &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		}
	}
	return &Client{
		Remote: HubClient{
			Client:        httpclient,
			Addr:          addr,
			Authorization: auth,
		},
	}
}

func (c Client) Ping(ctx context.Context) error {
	_, err := c.Remote.GetGlobalIndex(ctx, "")
	return err
}

func (c Client) GetGlobalIndex(ctx context.Context, search string) (*types.Index, error) {
	return c.Remote.GetGlobalIndex(ctx, search)
}

func (c Client) GetIndex(ctx context.Context, project string, search string) (*types.Index, error) {
	return c.Remote.GetIndex(ctx, project, search)
}

func (c Client) GetRun(ctx context.Context, project, name string) (*types.Run, error) {
	return c.Remote.GetRun(ctx, project, name)
}

// SubmitRun allocates a run name for the workflow and stores the run
// record under it.
func (c Client) SubmitRun(ctx context.Context, project string, run types.Run) (string, error) {
	name, err := c.Remote.AllocateRunName(ctx, project, run.Workflow)
	if err != nil {
		return "", err
	}
	run.Name = name
	run.Project = project
	if err := c.Remote.PutRun(ctx, project, name, run); err != nil {
		return "", err
	}
	return name, nil
}

func (c Client) StopRun(ctx context.Context, project, name string) error {
	return c.Remote.SetRunStatus(ctx, project, name, types.StatusStopped)
}

func (c Client) DeleteRun(ctx context.Context, project, name string) error {
	return c.Remote.DeleteRun(ctx, project, name)
}
