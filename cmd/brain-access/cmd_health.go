package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/brain-access/internal/catalog"
)

func healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check catalog consistency and connectivity to configured services",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()
			allOK := true

			// Check catalog
			if err := catalog.Validate(); err != nil {
				fmt.Printf("Catalog: FAIL (%v)\n", err)
				allOK = false
			} else {
				fmt.Println("Catalog: OK")
			}

			// Check store (and Redis counters when layered)
			st, err := newStore(ctx, logger)
			if err != nil {
				fmt.Printf("Store (%s): FAIL (%v)\n", cfg.Store.Backend, err)
				allOK = false
			} else {
				defer func() { _ = st.Close() }()
				if err := st.Ping(ctx); err != nil {
					fmt.Printf("Store (%s): FAIL (%v)\n", cfg.Store.Backend, err)
					allOK = false
				} else {
					fmt.Printf("Store (%s): OK\n", cfg.Store.Backend)
				}
			}

			// Check notifier
			if cfg.AMQP.Enabled() {
				_, closeNotifier, err := newNotifier(logger)
				if err != nil {
					fmt.Printf("RabbitMQ: FAIL (%v)\n", err)
					allOK = false
				} else {
					_ = closeNotifier()
					fmt.Println("RabbitMQ: OK")
				}
			} else {
				fmt.Println("RabbitMQ: not configured (notifications are logged)")
			}

			if !allOK {
				return fmt.Errorf("one or more health checks failed")
			}
			return nil
		},
	}
}
