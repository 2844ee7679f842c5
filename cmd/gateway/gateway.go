package main

import (
	"os"

	"emsgateway/cmd/gateway/app"
	"k8s.io/component-base/logs"
	_ "k8s.io/component-base/logs/json/register"
	"k8s.io/klog/v2"
)

func main() {
	cmd := app.NewGatewayCmd()
	logs.InitLogs()
	if err := cmd.Execute(); err != nil {
		klog.ErrorS(err, "Gateway exited")
		logs.FlushLogs()
		os.Exit(app.ExitCode(err))
	}
	logs.FlushLogs()
}
