package cache

import (
	"github.com/ValentinKolb/dGrid/cmd/util"
	"github.com/ValentinKolb/dGrid/rpc/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	namedCache client.INamedCache

	// CacheCommands represents the cache command group
	CacheCommands = &cobra.Command{
		Use:               "cache",
		Short:             "Perform named cache operations",
		PersistentPreRunE: setupCacheClient,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add common RPC flags to the cache command
	util.SetupRPCClientFlags(CacheCommands)

	CacheCommands.PersistentFlags().String("cache", "default", util.WrapString("Name of the cache to operate on"))
	CacheCommands.PersistentFlags().Bool("int", false, util.WrapString("Parse keys and values as 64 bit integers"))
	CacheCommands.PersistentFlags().Duration("expiry", 0, util.WrapString("Expiry of written entries (e.g. 30s, 5m), 0 keeps them until removed"))

	// Add subcommands
	CacheCommands.AddCommand(getCmd)
	CacheCommands.AddCommand(putCmd)
	CacheCommands.AddCommand(removeCmd)
	CacheCommands.AddCommand(containsCmd)
	CacheCommands.AddCommand(sizeCmd)
	CacheCommands.AddCommand(clearCmd)
	CacheCommands.AddCommand(keysCmd)
	CacheCommands.AddCommand(perfTestCmd)
}

// setupCacheClient connects the named cache selected by the flags
func setupCacheClient(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	config := util.GetClientConfig()

	// Get serializer and transport
	s, err := util.GetSerializer()
	if err != nil {
		return err
	}

	t, err := util.GetClientTransport()
	if err != nil {
		return err
	}

	namedCache, err = client.NewNamedCache(
		viper.GetString("cache"),
		*config,
		t,
		s,
	)

	return err
}
