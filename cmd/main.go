package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"live2d_bridge/internal/clients/funasr"
	"live2d_bridge/internal/clients/whisper"
	"live2d_bridge/internal/config"
	"live2d_bridge/internal/models"
	"live2d_bridge/internal/routes"
	"live2d_bridge/internal/services"
	"live2d_bridge/internal/utils"
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.Println("Live2D 桥接服务启动中...")

	configPath := flag.String("config", "config.yaml", "配置文件路径")
	serve := flag.Bool("serve", false, "同时启动模拟前端服务器")
	flag.Parse()

	// 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	// 按需启动模拟前端服务器
	if *serve {
		engine := routes.NewEngine(cfg)
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		go func() {
			if err := engine.Run(addr); err != nil {
				log.Fatalf("模拟前端服务器退出: %v", err)
			}
		}()
		log.Printf("模拟前端服务器监听于 %s", addr)
		time.Sleep(200 * time.Millisecond)
	}

	// 创建识别后端和ASR服务
	provider, err := newProvider(cfg)
	if err != nil {
		log.Fatalf("创建识别后端失败: %v", err)
	}
	asrService, err := services.NewASRService(provider, cfg.ASR.SenseVoice)
	if err != nil {
		log.Fatalf("创建ASR服务失败: %v", err)
	}
	defer asrService.Close()

	// 创建Live2D桥接，模型缺失直接终止进程
	bridge, err := services.NewLive2DService(cfg)
	if err != nil {
		log.Fatalf("初始化Live2D桥接失败: %v", err)
	}
	defer bridge.Close()

	// 启动命令处理
	handleCommands(bridge, asrService)
}

// newProvider 按配置创建识别后端
func newProvider(cfg *config.Config) (models.ASRProvider, error) {
	switch cfg.ASR.Provider {
	case "funasr":
		return funasr.NewClient(funasr.Config{
			ServerURL:  cfg.ASR.FunASR.ServerURL,
			SampleRate: cfg.ASR.SampleRate,
			Language:   cfg.ASR.Language,
			UseITN:     cfg.ASR.UseITN,
		}), nil
	case "whisper":
		return whisper.NewClient(whisper.Config{
			APIKey:     cfg.ASR.Whisper.APIKey,
			BaseURL:    cfg.ASR.Whisper.BaseURL,
			Model:      cfg.ASR.Whisper.Model,
			SampleRate: cfg.ASR.SampleRate,
			Language:   cfg.ASR.Language,
		}), nil
	default:
		return nil, fmt.Errorf("不支持的识别后端: %s", cfg.ASR.Provider)
	}
}

// printHelp 打印可用命令
func printHelp() {
	fmt.Println("可用命令:")
	fmt.Println("  listen - 采集一段前端麦克风音频并识别")
	fmt.Println("  say <text> - 发送文本和其中的表情到前端")
	fmt.Println("  expr <key> - 设置表情")
	fmt.Println("  model <name> - 切换模型")
	fmt.Println("  keys - 查看当前模型的情绪关键词")
	fmt.Println("  replay <file.pcap> - 回放抓包中的音频并识别")
	fmt.Println("  quit/exit - 退出程序")
}

// handleCommands 处理用户输入的命令
func handleCommands(bridge *services.Live2DService, asrService *services.ASRService) {
	reader := bufio.NewReader(os.Stdin)
	printHelp()

	for {
		fmt.Print("> ")
		command, err := reader.ReadString('\n')
		if err != nil {
			log.Printf("读取命令失败: %v", err)
			return
		}

		command = strings.TrimSpace(command)
		if command == "" {
			continue
		}

		parts := strings.Fields(command)
		switch parts[0] {
		case "listen":
			text, err := asrService.TranscribeFromSource(bridge)
			if err != nil {
				log.Printf("识别失败: %v", err)
				continue
			}
			log.Printf("识别结果: %s", text)

		case "say":
			if len(parts) < 2 {
				log.Printf("用法: say <text>")
				continue
			}
			text := strings.TrimSpace(strings.TrimPrefix(command, "say"))
			bridge.StartSpeaking()
			bridge.SendExpressionsFromText(text, bridge.ExpressionDelay())
			bridge.SendText(bridge.StripExpressionMarkers(text))
			bridge.StopSpeaking()

		case "expr":
			if len(parts) != 2 {
				log.Printf("用法: expr <key>")
				continue
			}
			if err := bridge.SetExpression(parts[1]); err != nil {
				log.Printf("设置表情失败: %v", err)
			}

		case "model":
			if len(parts) != 2 {
				log.Printf("用法: model <name>")
				continue
			}
			if _, err := bridge.SelectModel(parts[1]); err != nil {
				log.Printf("切换模型失败: %v", err)
			}

		case "keys":
			fmt.Println(bridge.EmotionMapKeys())

		case "replay":
			if len(parts) != 2 {
				log.Printf("用法: replay <file.pcap>")
				continue
			}
			replayCapture(asrService, parts[1])

		case "quit", "exit":
			return

		case "help":
			printHelp()

		default:
			log.Printf("未知命令: %s", command)
		}
	}
}

// replayCapture 回放抓包文件中录制的麦克风音频并识别
func replayCapture(asrService *services.ASRService, filename string) {
	pcapReader, err := utils.NewPCAPReader(filename)
	if err != nil {
		log.Printf("打开抓包文件失败: %v", err)
		return
	}

	samples, err := pcapReader.ReadMicAudioSamples()
	if err != nil {
		log.Printf("提取音频失败: %v", err)
		return
	}
	log.Printf("从抓包中提取了 %d 个采样", len(samples))

	text, err := asrService.Transcribe(samples)
	if err != nil {
		log.Printf("识别失败: %v", err)
		return
	}
	log.Printf("识别结果: %s", text)
}
