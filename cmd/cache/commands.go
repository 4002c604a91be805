package cache

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// parseArg converts a command line argument to a key or value
func parseArg(arg string) (any, error) {
	if !viper.GetBool("int") {
		return arg, nil
	}
	n, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%q is not an integer: %w", arg, err)
	}
	return n, nil
}

var (
	getCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Reads the value of a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseArg(args[0])
			if err != nil {
				return err
			}
			value, ok, err := namedCache.Get(key)
			if err != nil {
				return err
			}
			fmt.Printf("key=%v, found=%t, value=%v\n", key, ok, value)
			return nil
		},
	}
	putCmd = &cobra.Command{
		Use:   "put [key] [value]",
		Short: "Writes the value of a key, see --expiry",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseArg(args[0])
			if err != nil {
				return err
			}
			value, err := parseArg(args[1])
			if err != nil {
				return err
			}
			previous, err := namedCache.Put(key, value, viper.GetDuration("expiry"))
			if err != nil {
				return err
			}
			fmt.Printf("put successfully, previous=%v\n", previous)
			return nil
		},
	}
	removeCmd = &cobra.Command{
		Use:   "remove [key]",
		Short: "Removes a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseArg(args[0])
			if err != nil {
				return err
			}
			previous, ok, err := namedCache.Remove(key)
			if err != nil {
				return err
			}
			fmt.Printf("key=%v, removed=%t, value=%v\n", key, ok, previous)
			return nil
		},
	}
	containsCmd = &cobra.Command{
		Use:   "contains [key]",
		Short: "Checks if a key exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseArg(args[0])
			if err != nil {
				return err
			}
			found, err := namedCache.ContainsKey(key)
			if err != nil {
				return err
			}
			fmt.Printf("key=%v, found=%t\n", key, found)
			return nil
		},
	}
	sizeCmd = &cobra.Command{
		Use:   "size",
		Short: "Prints the number of entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := namedCache.Size()
			if err != nil {
				return err
			}
			fmt.Printf("cache=%s, size=%d\n", namedCache.Name(), n)
			return nil
		},
	}
	clearCmd = &cobra.Command{
		Use:   "clear",
		Short: "Removes all entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := namedCache.Clear()
			if err != nil {
				return err
			}
			fmt.Printf("cache=%s, removed=%d\n", namedCache.Name(), n)
			return nil
		},
	}
	keysCmd = &cobra.Command{
		Use:   "keys",
		Short: "Lists all keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := namedCache.Keys()
			if err != nil {
				return err
			}
			lines := make([]string, len(keys))
			for i, k := range keys {
				lines[i] = fmt.Sprint(k)
			}
			sort.Strings(lines)
			for _, line := range lines {
				fmt.Println(line)
			}
			return nil
		},
	}
)
