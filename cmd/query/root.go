package query

import (
	"fmt"

	"github.com/ValentinKolb/dbatch/cmd/util"
	"github.com/ValentinKolb/dbatch/lib/batch"
	"github.com/ValentinKolb/dbatch/rpc/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	batchClient *client.BatchClient

	// QueryCommands represents the query command group
	QueryCommands = &cobra.Command{
		Use:                "query",
		Short:              "Read many keys at once from a cluster",
		PersistentPreRunE:  setupBatchClient,
		PersistentPostRunE: closeBatchClient,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add the topology, policy and transport flags
	util.SetupBatchClientFlags(QueryCommands)

	key := "namespace"
	QueryCommands.PersistentFlags().String(key, "test", util.WrapString("Namespace of the keys"))
	key = "set"
	QueryCommands.PersistentFlags().String(key, "", util.WrapString("Set name of the keys"))

	// Add subcommands
	QueryCommands.AddCommand(getCmd)
	QueryCommands.AddCommand(existsCmd)
	QueryCommands.AddCommand(readCmd)
	QueryCommands.AddCommand(nodesCmd)
	QueryCommands.AddCommand(perfTestCmd)
}

// setupBatchClient creates the batch client from the topology file
func setupBatchClient(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}
	if err := util.InitLogging(); err != nil {
		return err
	}

	config := util.GetClientConfig()

	c, err := util.GetCluster(config)
	if err != nil {
		return err
	}

	s, err := util.GetSerializer()
	if err != nil {
		return err
	}

	t, err := util.GetClientTransport()
	if err != nil {
		return err
	}

	batchClient, err = client.NewBatchClient(*config, c, t, s)
	return err
}

func closeBatchClient(_ *cobra.Command, _ []string) error {
	if batchClient == nil {
		return nil
	}
	return batchClient.Close()
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// parseKeys turns user keys into keys of the configured namespace and set
func parseKeys(userKeys []string) ([]*batch.Key, error) {
	keys := make([]*batch.Key, len(userKeys))
	for i, k := range userKeys {
		key, err := batch.NewKey(viper.GetString("namespace"), viper.GetString("set"), k)
		if err != nil {
			return nil, fmt.Errorf("invalid key %q: %w", k, err)
		}
		keys[i] = key
	}
	return keys, nil
}
