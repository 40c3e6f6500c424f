package admincli

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/autolot/internal/common"
	"github.com/dmitrijs2005/autolot/internal/server/auth"
)

var errPasswordMismatch = errors.New("passwords do not match")

func (c *cli) newHashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password",
		Short: "Prompt for the admin password and print its bcrypt hash for ADMIN_PASS_HASH",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			errOut := cmd.ErrOrStderr()

			fmt.Fprint(errOut, "Enter password: ")
			pw, err := readPassword(int(os.Stdin.Fd()))
			fmt.Fprintln(errOut)
			if err != nil {
				return err
			}
			defer common.WipeByteArray(pw)
			if len(pw) == 0 {
				return errors.New("empty password")
			}

			fmt.Fprint(errOut, "Repeat password: ")
			again, err := readPassword(int(os.Stdin.Fd()))
			fmt.Fprintln(errOut)
			if err != nil {
				return err
			}
			defer common.WipeByteArray(again)
			if !bytes.Equal(pw, again) {
				return errPasswordMismatch
			}

			hash, err := auth.HashPassword(string(pw))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}
