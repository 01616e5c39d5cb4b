package ioc

import "github.com/google/wire"

// SyncSet 提供从配置到同步服务的完整依赖链，HTTP 服务和命令行共用。
var SyncSet = wire.NewSet(
	InitConfig,
	InitLogger,
	InitTokenSource,
	InitERPClient,
	InitMirrorStore,
	InitGraphClient,
	InitProjector,
	InitTransformer,
	InitPasses,
	InitProbes,
	InitAppService,
)
