package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Ning0612/snapdiff/internal/adapter/gdrive"
	"github.com/Ning0612/snapdiff/internal/domain"
)

var authCommand = &cobra.Command{
	Use:   "auth",
	Short: "Authorize access to remote transports",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var authGDriveCommand = &cobra.Command{
	Use:   "gdrive [transport]",
	Short: "Authorize read-only Google Drive metadata access",
	Long: `Runs the OAuth consent flow for a gdrive transport and stores the token at
the transport's token_path. Without an argument the first gdrive transport
in the config is used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: authGDriveMain,
}

func init() {
	authCommand.AddCommand(authGDriveCommand)
}

func authGDriveMain(cmd *cobra.Command, args []string) error {
	transport, err := gdriveTransport(args)
	if err != nil {
		return err
	}

	auth := gdrive.NewAuthenticator(transport.ClientID, transport.ClientSecret, transport.TokenPath)
	if _, err := auth.Authenticate(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Token saved to %s\n", auth.TokenPath())
	return nil
}

func gdriveTransport(args []string) (*domain.Transport, error) {
	if len(args) == 1 {
		t, err := current.cfg.GetTransport(args[0])
		if err != nil {
			return nil, err
		}
		if t.Type != domain.TransportGDrive {
			return nil, fmt.Errorf("%w: transport %s is not gdrive", domain.ErrConfigInvalid, t.Name)
		}
		return t, nil
	}
	for i := range current.cfg.Transports {
		if current.cfg.Transports[i].Type == domain.TransportGDrive {
			return &current.cfg.Transports[i], nil
		}
	}
	return nil, fmt.Errorf("%w: no gdrive transport configured", domain.ErrTransportNotFound)
}
