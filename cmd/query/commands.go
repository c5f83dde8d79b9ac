package query

import (
	"fmt"
	"slices"
	"strings"

	"github.com/ValentinKolb/dbatch/lib/batch"
	"github.com/spf13/cobra"
)

var (
	getCmd = &cobra.Command{
		Use:   "get [key...]",
		Short: "Reads the records of the given keys",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := parseKeys(args)
			if err != nil {
				return err
			}
			bins, _ := cmd.Flags().GetStringSlice("bins")
			header, _ := cmd.Flags().GetBool("header")
			stream, _ := cmd.Flags().GetBool("stream")

			if stream {
				s := batchClient.GetStream(cmd.Context(), keys, bins...)
				defer s.Close()
				for item := range s.Items() {
					printRecord(item.Key, item.Record)
				}
				return s.Err()
			}

			var records []*batch.Record
			if header {
				records, err = batchClient.GetHeader(cmd.Context(), keys)
			} else {
				records, err = batchClient.Get(cmd.Context(), keys, bins...)
			}
			if err != nil {
				return err
			}
			for i, rec := range records {
				printRecord(keys[i], rec)
			}
			return nil
		},
	}
	existsCmd = &cobra.Command{
		Use:   "exists [key...]",
		Short: "Checks which of the given keys exist",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := parseKeys(args)
			if err != nil {
				return err
			}
			stream, _ := cmd.Flags().GetBool("stream")

			if stream {
				s := batchClient.ExistsStream(cmd.Context(), keys)
				defer s.Close()
				for item := range s.Items() {
					fmt.Printf("%s: %t\n", item.Key.UserKey, item.Exists)
				}
				return s.Err()
			}

			exists, err := batchClient.Exists(cmd.Context(), keys)
			if err != nil {
				return err
			}
			for i, ok := range exists {
				fmt.Printf("%s: %t\n", keys[i].UserKey, ok)
			}
			return nil
		},
	}
	readCmd = &cobra.Command{
		Use:   "read [key[:bin,...]...]",
		Short: "Reads keys with a bin selection per key",
		Long: `Reads keys with a bin selection per key. A plain key reads all bins,
key:a,b reads the bins a and b and key: reads only the record header.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reads, err := parseReads(args)
			if err != nil {
				return err
			}
			if err := batchClient.ReadList(cmd.Context(), reads); err != nil {
				return err
			}
			for _, r := range reads {
				printRecord(r.Key, r.Record)
			}
			return nil
		},
	}
)

func init() {
	getCmd.Flags().StringSlice("bins", nil, "Bins to read (all bins if empty)")
	getCmd.Flags().Bool("header", false, "Read only generation and expiration")
	getCmd.Flags().Bool("stream", false, "Print records as nodes answer")
	existsCmd.Flags().Bool("stream", false, "Print results as nodes answer")
}

// parseReads parses key[:bin,...] arguments
func parseReads(args []string) ([]*batch.BatchRead, error) {
	reads := make([]*batch.BatchRead, len(args))
	for i, arg := range args {
		userKey, binList, hasBins := strings.Cut(arg, ":")
		keys, err := parseKeys([]string{userKey})
		if err != nil {
			return nil, err
		}
		switch {
		case !hasBins:
			reads[i] = batch.NewBatchRead(keys[0])
		case binList == "":
			reads[i] = &batch.BatchRead{Key: keys[0]}
		default:
			reads[i] = batch.NewBatchRead(keys[0], strings.Split(binList, ",")...)
		}
	}
	return reads, nil
}

// printRecord prints one record as "key: gen=.. exp=.. {bin=value ...}"
func printRecord(key *batch.Key, rec *batch.Record) {
	if rec == nil {
		fmt.Printf("%s: not found\n", key.UserKey)
		return
	}

	names := make([]string, 0, len(rec.Bins))
	for name := range rec.Bins {
		names = append(names, name)
	}
	slices.Sort(names)

	bins := make([]string, len(names))
	for i, name := range names {
		bins[i] = fmt.Sprintf("%s=%s", name, rec.Bins[name])
	}
	fmt.Printf("%s: gen=%d exp=%d {%s}\n", key.UserKey, rec.Generation, rec.Expiration, strings.Join(bins, " "))
}

var nodesCmd = &cobra.Command{
	Use:   "nodes",
	Short: "Prints the cluster topology the client reads from",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(batchClient.Cluster().Topology().String())
		d := batchClient.Cluster().Distribution()
		for _, n := range batchClient.Cluster().Nodes() {
			fmt.Printf("%s masters %d partitions\n", n, d.Masters[n.Name()])
		}
		fmt.Printf("partition spread: mean %.1f, stddev %.1f, min/max %.2f, quality %.2f\n",
			d.Mean, d.StdDeviation, d.MinMaxRatio, d.Quality)
	},
}
