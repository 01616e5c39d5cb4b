package ioc

import (
	"context"
	"errors"

	"erp2mirror/internal/app"
	"erp2mirror/internal/domain"
	"erp2mirror/internal/erp"
	"erp2mirror/internal/graph"
	"erp2mirror/internal/mirror"
	"erp2mirror/internal/transform"
	"go.uber.org/zap"
)

// InitTransformer 构建字段转换器。
func InitTransformer(cfg app.Config) *transform.Transformer {
	return transform.NewTransformer(transform.Options{
		Locales:        cfg.Sync.Locales,
		DefaultName:    cfg.Sync.DefaultName,
		DefaultTaxRate: cfg.Sync.TaxRate(),
	})
}

// InitPasses 按固定顺序注册流程：先商品后促销方案。
func InitPasses(cfg app.Config, fetcher erp.Fetcher, store mirror.Store, sink app.Sink, tr *transform.Transformer, logger *zap.Logger) ([]app.Pass, error) {
	productRec, err := app.NewReconciler(domain.EntityProducts, store, sink, logger.Named("reconciler"))
	if err != nil {
		return nil, err
	}
	loyaltyRec, err := app.NewReconciler(domain.EntityLoyalty, store, sink, logger.Named("reconciler"))
	if err != nil {
		return nil, err
	}
	return []app.Pass{
		&app.ProductPass{
			ERP:         fetcher,
			Endpoint:    cfg.ERP.Endpoints.Products,
			Transformer: tr,
			Reconciler:  productRec,
			Logger:      logger.Named("products"),
		},
		&app.LoyaltyPass{
			ERP:          fetcher,
			Endpoint:     cfg.ERP.Endpoints.Loyalty,
			Grouper:      transform.NewLoyaltyGrouper(logger.Named("grouper")),
			Transformer:  tr,
			AllowedTypes: cfg.Sync.Loyalty.AllowedTypes,
			Reconciler:   loyaltyRec,
			Logger:       logger.Named("loyalty"),
		},
	}, nil
}

type pinger interface {
	Ping(ctx context.Context) error
}

// InitProbes 构建 validate 命令使用的连通性检查。
func InitProbes(store mirror.Store, tokens erp.TokenSource, graphClient *graph.Client) []app.Probe {
	probes := []app.Probe{
		{Name: "mirror", Check: func(ctx context.Context) error {
			if p, ok := store.(pinger); ok {
				return p.Ping(ctx)
			}
			return nil
		}},
		{Name: "erp-credential", Check: func(ctx context.Context) error {
			token, err := tokens.Token(ctx)
			if err != nil {
				return err
			}
			if token == "" {
				return errors.New("token 为空")
			}
			return nil
		}},
	}
	if graphClient != nil {
		probes = append(probes, app.Probe{Name: "neo4j", Check: func(ctx context.Context) error {
			_, err := graphClient.RunRead(ctx, "RETURN 1 AS ok", nil)
			return err
		}})
	}
	return probes
}

// InitAppService 构建同步编排服务。
func InitAppService(passes []app.Pass, probes []app.Probe, logger *zap.Logger) *app.Service {
	return app.NewService(passes, probes, logger.Named("sync"))
}
