package main

import (
	"context"
	"fmt"
	"io"

	"erp2mirror/internal/domain"
	"erp2mirror/ioc"
	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

const triggerCLI = "cli"

// syncService 是命令行需要的编排器能力。
type syncService interface {
	TriggerFullPass(ctx context.Context, trigger string) domain.SyncResult
	TriggerEntityPass(ctx context.Context, entity domain.EntityType) (domain.SyncStats, error)
	Validate(ctx context.Context) error
}

type buildFunc func(ctx context.Context, path ioc.ConfigPath) (syncService, func(), error)

type rootOptions struct {
	configPath string
}

func newRootCommand(build buildFunc) *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "syncer",
		Short:         "ERP 到本地镜像库的一次性同步工具",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "配置文件路径，默认读取 ERP2MIRROR_CONFIG 或 configs/config.yaml")

	cmd.AddCommand(newSyncCommand(opts, build))
	cmd.AddCommand(newSyncEntityCommand(opts, build))
	cmd.AddCommand(newValidateCommand(opts, build))
	return cmd
}

func newSyncCommand(opts *rootOptions, build buildFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "执行一次完整同步：先商品后促销方案",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, cleanup, err := build(cmd.Context(), ioc.ConfigPath(opts.configPath))
			if err != nil {
				return err
			}
			defer cleanup()
			result := svc.TriggerFullPass(cmd.Context(), triggerCLI)
			if err := writeJSON(cmd.OutOrStdout(), result); err != nil {
				return err
			}
			if !result.Success {
				return fmt.Errorf("同步未完全成功: %s", result.Message)
			}
			return nil
		},
	}
}

func newSyncEntityCommand(opts *rootOptions, build buildFunc) *cobra.Command {
	return &cobra.Command{
		Use:       "sync-entity <products|loyalty>",
		Short:     "只同步一种实体",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(domain.EntityProducts), string(domain.EntityLoyalty)},
		RunE: func(cmd *cobra.Command, args []string) error {
			entity, ok := domain.ParseEntityType(args[0])
			if !ok {
				return fmt.Errorf("未知实体类型 %q", args[0])
			}
			svc, cleanup, err := build(cmd.Context(), ioc.ConfigPath(opts.configPath))
			if err != nil {
				return err
			}
			defer cleanup()
			stats, err := svc.TriggerEntityPass(cmd.Context(), entity)
			if err != nil {
				return err
			}
			if err := writeJSON(cmd.OutOrStdout(), stats); err != nil {
				return err
			}
			if !stats.Success {
				return fmt.Errorf("%s 同步失败: %s", entity, stats.Error)
			}
			return nil
		},
	}
}

func newValidateCommand(opts *rootOptions, build buildFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "校验配置、镜像库连通性和 ERP 认证",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, cleanup, err := build(cmd.Context(), ioc.ConfigPath(opts.configPath))
			if err != nil {
				return err
			}
			defer cleanup()
			if err := svc.Validate(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化结果失败: %w", err)
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
