package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonathan/police-terminal/internal/config"
)

var hashPasscodeCmd = &cobra.Command{
	Use:   "hash-passcode [passcode]",
	Short: "Hash an officer passcode for officer.passcode_hash",
	Long: `Print the bcrypt hash of a passcode, using BCRYPT_COST and PASSWORD_PEPPER
from the environment. The passcode is read from stdin when not given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHashPasscode,
}

func init() {
	rootCmd.AddCommand(hashPasscodeCmd)
}

func runHashPasscode(cmd *cobra.Command, args []string) error {
	passcodes, err := config.NewPasscodeConfig()
	if err != nil {
		return err
	}

	var passcode string
	if len(args) == 1 {
		passcode = args[0]
	} else {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("failed to read passcode: %w", err)
		}
		passcode = strings.TrimRight(line, "\r\n")
	}

	hash, err := passcodes.HashPasscode(passcode)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), hash)
	return nil
}
