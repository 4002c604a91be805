package pof

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ValentinKolb/dGrid/cmd/util"
	"github.com/ValentinKolb/dGrid/lib/pof"
	"github.com/ValentinKolb/dGrid/rpc/common"
	"github.com/spf13/cobra"
)

var (
	// PofCommands represents the pof command group
	PofCommands = &cobra.Command{
		Use:   "pof",
		Short: "Inspect and produce POF streams",
	}

	dumpCmd = &cobra.Command{
		Use:   "dump [HEX|-]",
		Short: "Prints the events of a hex encoded POF stream",
		Long:  "Prints the events of a hex encoded POF stream. With - or without an argument the stream is read from stdin. Whitespace in the input is ignored.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var input string
			if len(args) == 0 || args[0] == "-" {
				b, err := io.ReadAll(bufio.NewReader(cmd.InOrStdin()))
				if err != nil {
					return err
				}
				input = string(b)
			} else {
				input = args[0]
			}

			data, err := hex.DecodeString(strings.Join(strings.Fields(input), ""))
			if err != nil {
				return fmt.Errorf("invalid hex input: %w", err)
			}

			out := cmd.OutOrStdout()
			if err := pof.Parse(data, pof.NewPrintingHandler(out)); err != nil {
				return err
			}

			if decode, _ := cmd.Flags().GetBool("decode"); decode {
				v, err := pof.Deserialize(common.NewProtocolContext(), data)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "value: %#v\n", v)
			}
			return nil
		},
	}

	encodeCmd = &cobra.Command{
		Use:   "encode [VALUE]",
		Short: "Prints the hex encoded POF stream of a value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, _ := cmd.Flags().GetString("type")
			v, err := parseValue(kind, args[0])
			if err != nil {
				return err
			}
			data, err := pof.Serialize(common.NewProtocolContext(), v)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(data))
			return nil
		},
	}
)

func init() {
	dumpCmd.Flags().Bool("decode", false, util.WrapString("Also decode the stream and print the resulting value"))
	encodeCmd.Flags().String("type", "string", util.WrapString("Type of the value (string, int, bool, float)"))

	PofCommands.AddCommand(dumpCmd)
	PofCommands.AddCommand(encodeCmd)
}

// parseValue converts a command line argument to a value of the given kind
func parseValue(kind, arg string) (any, error) {
	switch kind {
	case "string":
		return arg, nil
	case "int":
		return strconv.ParseInt(arg, 10, 64)
	case "bool":
		return strconv.ParseBool(arg)
	case "float":
		return strconv.ParseFloat(arg, 64)
	}
	return nil, fmt.Errorf("invalid type %s (expected string, int, bool or float)", kind)
}
