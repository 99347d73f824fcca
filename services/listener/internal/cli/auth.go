package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/listening-companion/services/listener/internal/clientconfig"
	"github.com/example/listening-companion/services/listener/internal/remote"
)

type credentialFlags struct {
	email    string
	password string
}

func (f *credentialFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.email, "email", "", "account email")
	cmd.Flags().StringVar(&f.password, "password", "", "account password (prompted when omitted)")
}

// resolve prompts on the command's stdin for anything missing.
func (f *credentialFlags) resolve(cmd *cobra.Command) error {
	in := bufio.NewReader(cmd.InOrStdin())
	out := cmd.ErrOrStderr()
	if strings.TrimSpace(f.email) == "" {
		v, err := prompt(in, out, "Email: ")
		if err != nil {
			return err
		}
		f.email = v
	}
	if f.password == "" {
		v, err := prompt(in, out, "Password: ")
		if err != nil {
			return err
		}
		f.password = v
	}
	if strings.TrimSpace(f.email) == "" || f.password == "" {
		return errors.New("email and password required")
	}
	return nil
}

func prompt(in *bufio.Reader, out io.Writer, label string) (string, error) {
	fmt.Fprint(out, label)
	line, err := in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func newRegisterCmd(a *app) *cobra.Command {
	var f credentialFlags
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and save its token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := f.resolve(cmd); err != nil {
				return err
			}
			return a.authenticate(cmd, f, a.client.Register)
		},
	}
	f.bind(cmd)
	return cmd
}

func newLoginCmd(a *app) *cobra.Command {
	var f credentialFlags
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and save the token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := f.resolve(cmd); err != nil {
				return err
			}
			return a.authenticate(cmd, f, a.client.Login)
		},
	}
	f.bind(cmd)
	return cmd
}

func (a *app) authenticate(cmd *cobra.Command, f credentialFlags, call func(ctx context.Context, email, password string) (remote.AuthResult, error)) error {
	res, err := call(cmd.Context(), f.email, f.password)
	if err != nil {
		var ae *remote.APIError
		if errors.As(err, &ae) && ae.Message != "" {
			return errors.New(ae.Message)
		}
		return explain(err)
	}
	a.cfg.Token = res.Token
	a.cfg.Email = res.User.Email
	if err := clientconfig.Save(a.cfgPath, a.cfg); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%s plan).\n", res.User.Email, res.User.SubscriptionTier)
	return nil
}
