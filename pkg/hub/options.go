package hub

import (
	"crypto/tls"
	"crypto/x509"
	"os"
	"time"
)

type Options struct {
	Listen         string
	TLS            *TLS
	S3             *S3
	Local          *Local
	OIDC           *OIDC
	SequencePath   string
	EnableRedirect bool
}

func DefaultOptions() *Options {
	return &Options{
		Listen: ":8080",
		TLS:    &TLS{},
		S3: &S3{
			Bucket:        "dstack",
			PresignExpire: time.Hour,
		},
		Local: &Local{
			Basepath: "data/hub",
		},
		OIDC:           &OIDC{},
		SequencePath:   DefaultSequencePath,
		EnableRedirect: true,
	}
}

type TLS struct {
	CertFile string
	KeyFile  string
	CAFile   string
}

func (t *TLS) ToTLSConfig() (*tls.Config, error) {
	pool, err := x509.SystemCertPool()
	if err != nil {
		return nil, err
	}
	config := &tls.Config{ClientCAs: pool}
	if t.CAFile != "" {
		capem, err := os.ReadFile(t.CAFile)
		if err != nil {
			return nil, err
		}
		config.ClientCAs.AppendCertsFromPEM(capem)
	}
	certificate, err := tls.LoadX509KeyPair(t.CertFile, t.KeyFile)
	if err != nil {
		return nil, err
	}
	config.Certificates = append(config.Certificates, certificate)
	return config, nil
}

type S3 struct {
	URL           string        `json:"url,omitempty"`
	Region        string        `json:"region,omitempty"`
	Bucket        string        `json:"bucket,omitempty"`
	AccessKey     string        `json:"accessKey,omitempty"`
	SecretKey     string        `json:"secretKey,omitempty"`
	PresignExpire time.Duration `json:"presignExpire,omitempty"`
}

type Local struct {
	Basepath string
}

type OIDC struct {
	Issuer string
}
