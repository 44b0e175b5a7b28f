// Command convtester drives a live chatbot service through the widget's
// conversation lifecycle and checks how concurrent actions behave.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"

	"github.com/zhouzirui/z-tavern/widget/internal/client/chatapi"
	"github.com/zhouzirui/z-tavern/widget/internal/config"
	"github.com/zhouzirui/z-tavern/widget/internal/logger"
)

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("配置加载失败", "err", err)
	}

	mode := flag.String("mode", "all", "测试模式: lifecycle, race 或 all")
	apiURL := flag.String("api", cfg.Widget.APIURL, "聊天服务地址")
	persona := flag.String("persona", cfg.Widget.Persona, "创建会话时使用的 persona")
	concurrency := flag.Int("n", 4, "race 模式下同时发送的消息数")
	timeout := flag.Duration("timeout", 45*time.Second, "整体超时时间")
	verbose := flag.Bool("v", false, "输出调试日志")

	flag.Parse()

	level := cfg.Log.Level
	if *verbose {
		level = "debug"
	}
	logr, _, err := logger.New(logger.Options{Level: level, Output: os.Stderr, Prefix: "convtester"})
	if err != nil {
		log.Fatal("日志初始化失败", "err", err)
	}
	if envErr != nil {
		logr.Warn("无法加载 .env，改用系统环境变量", "err", envErr)
	}

	if *mode != "lifecycle" && *mode != "race" && *mode != "all" {
		flag.Usage()
		logr.Fatal("请通过 -mode=lifecycle|race|all 指定测试模式")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	client := chatapi.New(*apiURL,
		chatapi.WithTimeout(cfg.Widget.Timeout),
		chatapi.WithLogger(logr.WithPrefix("client")),
		chatapi.WithPersona(*persona),
	)

	failed := false
	if *mode == "lifecycle" || *mode == "all" {
		logr.Info("开始会话流程测试", "api", *apiURL)
		if err := runLifecycle(ctx, client, logr); err != nil {
			logr.Error("会话流程测试失败", "err", err)
			failed = true
		} else {
			logr.Info("会话流程全部通过")
		}
	}

	if *mode == "race" || *mode == "all" {
		for _, serialize := range []bool{true, false} {
			result, err := checkDoubleSubmit(ctx, client, logr, serialize, *concurrency)
			if err != nil {
				logr.Error("并发发送检查失败", "serialize", serialize, "err", err)
				failed = true
				continue
			}
			logr.Info("并发发送结果",
				"serialize", serialize,
				"sent", result.Attempts,
				"appended", result.Appended,
				"busy", result.Busy,
				"failed", result.Failed,
			)
		}
	}

	if failed {
		os.Exit(1)
	}
}
