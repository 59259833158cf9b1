package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/tnissen375/dstack/pkg/hub"
	"github.com/tnissen375/dstack/pkg/version"
)

const ErrExitCode = 1

func main() {
	if err := NewHubCmd().Execute(); err != nil {
		fmt.Println(err.Error())
		os.Exit(ErrExitCode)
	}
}

func NewHubCmd() *cobra.Command {
	options := hub.DefaultOptions()
	envfile := ""
	cmd := &cobra.Command{
		Use:     "dstackd",
		Short:   "dstack hub daemon",
		Version: version.Get().String(),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
			defer cancel()

			if envfile != "" {
				if err := godotenv.Load(envfile); err != nil {
					return err
				}
			} else {
				// optional .env next to the binary
				_ = godotenv.Load()
			}
			if ak := os.Getenv("DSTACK_S3_ACCESS_KEY"); ak != "" {
				options.S3.AccessKey = ak
			}
			if sk := os.Getenv("DSTACK_S3_SECRET_KEY"); sk != "" {
				options.S3.SecretKey = sk
			}

			log.SetFlags(log.LstdFlags | log.Lshortfile)
			ctx = logr.NewContext(ctx, stdr.NewWithOptions(log.Default(), stdr.Options{LogCaller: stdr.Error}))

			return hub.Run(ctx, options)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&envfile, "env-file", envfile, "load environment from file")
	flags.StringVar(&options.Listen, "listen", options.Listen, "listen address")
	flags.StringVar(&options.TLS.CAFile, "tls-ca", options.TLS.CAFile, "tls ca file")
	flags.StringVar(&options.TLS.CertFile, "tls-cert", options.TLS.CertFile, "tls cert file")
	flags.StringVar(&options.TLS.KeyFile, "tls-key", options.TLS.KeyFile, "tls key file")
	flags.StringVar(&options.S3.Bucket, "s3-bucket", options.S3.Bucket, "s3 bucket")
	flags.StringVar(&options.S3.URL, "s3-url", options.S3.URL, "s3 url, local storage is used when empty")
	flags.StringVar(&options.S3.AccessKey, "s3-access-key", options.S3.AccessKey, "s3 access key")
	flags.StringVar(&options.S3.SecretKey, "s3-secret-key", options.S3.SecretKey, "s3 secret key")
	flags.DurationVar(&options.S3.PresignExpire, "s3-presign-expire", options.S3.PresignExpire, "s3 presign expire")
	flags.StringVar(&options.S3.Region, "s3-region", options.S3.Region, "s3 region")
	flags.StringVar(&options.Local.Basepath, "local-path", options.Local.Basepath, "local storage path")
	flags.StringVar(&options.SequencePath, "sequence-path", options.SequencePath, "run name sequence db path")
	flags.StringVar(&options.OIDC.Issuer, "oidc-issuer", options.OIDC.Issuer, "oidc issuer")
	flags.BoolVar(&options.EnableRedirect, "enable-redirect", options.EnableRedirect, "enable artifact storage redirect")

	return cmd
}
