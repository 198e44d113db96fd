// cvrank 离线对一批候选人 JSON 文件打分排序
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"cv-ranker/internal/config"
	appCoreLogger "cv-ranker/internal/logger"
	"cv-ranker/internal/ranking"
	"cv-ranker/internal/service"
	"cv-ranker/internal/types"
)

type options struct {
	configPath string
	role       string
	skills     []string
	field      string
	minYears   float64
	weights    string
	filter     []string
	asJSON     bool
}

func main() {
	var opts options
	pflag.StringVarP(&opts.configPath, "config", "c", "", "配置文件路径，为空时使用默认配置")
	pflag.StringVar(&opts.role, "role", "", "目标岗位名称")
	pflag.StringSliceVar(&opts.skills, "skills", nil, "必需技能，逗号分隔")
	pflag.StringVar(&opts.field, "field", "", "期望的专业方向")
	pflag.Float64Var(&opts.minYears, "min-years", 0, "最低工作年限")
	pflag.StringVar(&opts.weights, "weights", "", "权重，例如 experience=30,technical_skills=30,projects=20,education=10,signal=10")
	pflag.StringSliceVar(&opts.filter, "filter", nil, "预筛选技能词，逗号分隔")
	pflag.BoolVar(&opts.asJSON, "json", false, "以 JSON 输出结果")
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "用法: cvrank [flags] candidate.json...\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if err := run(context.Background(), opts, pflag.Args(), os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "错误:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, files []string, stdout, stderr io.Writer) error {
	if len(files) == 0 {
		return fmt.Errorf("至少需要一个候选人文件")
	}
	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return err
	}
	// 日志写 stderr，避免混入 JSON 输出
	appCoreLogger.Logger = appCoreLogger.New(appCoreLogger.Config{
		Level:  cfg.Logger.Level,
		Format: "pretty",
	}, stderr)

	weights, err := parseWeights(opts.weights)
	if err != nil {
		return err
	}

	ranker := service.NewRankerFromConfig(cfg.Scoring, appCoreLogger.Component("ranker"))
	if sum := ranker.ResolveWeights(weights).Sum(); math.Abs(sum-100) > 0.01 {
		return fmt.Errorf("权重之和必须为 100，当前为 %.2f", sum)
	}

	var candidates []types.CandidateRecord
	for _, path := range files {
		loaded, err := loadCandidates(path)
		if err != nil {
			fmt.Fprintf(stderr, "跳过 %s: %v\n", path, err)
			continue
		}
		candidates = append(candidates, loaded...)
	}
	if len(candidates) == 0 {
		return fmt.Errorf("没有可用的候选人")
	}
	if len(opts.filter) > 0 {
		candidates = ranking.Prefilter(candidates, opts.filter, ranker.Engine().Matcher().Taxonomy())
	}

	job := types.JobProfile{
		RequiredSkills:     opts.skills,
		Role:               opts.role,
		MinExperienceYears: opts.minYears,
		Field:              opts.field,
	}
	result, err := ranker.RankCandidates(ctx, candidates, job, weights)
	if err != nil {
		return err
	}

	if opts.asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	if err := ranking.WriteReport(stdout, result); err != nil {
		return err
	}
	return ranking.WriteTable(stdout, result)
}

// parseWeights 解析 name=value 形式的权重列表
func parseWeights(raw string) (*types.WeightConfig, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	w := &types.WeightConfig{}
	for _, part := range strings.Split(raw, ",") {
		name, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			return nil, fmt.Errorf("权重格式错误: %q", part)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil || v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("权重 %s 的值无效: %q", name, value)
		}
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "experience":
			w.Experience = &v
		case "technical_skills", "technical":
			w.TechnicalSkills = &v
		case "projects":
			w.Projects = &v
		case "education":
			w.Education = &v
		case "signal":
			w.Signal = &v
		default:
			return nil, fmt.Errorf("未知的权重项: %s", name)
		}
	}
	return w, nil
}

// loadCandidates 文件内容可以是单个候选人对象，也可以是对象数组
func loadCandidates(path string) ([]types.CandidateRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var list []types.CandidateRecord
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, fmt.Errorf("解析候选人数组失败: %w", err)
		}
		return list, nil
	}
	var c types.CandidateRecord
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("解析候选人失败: %w", err)
	}
	return []types.CandidateRecord{c}, nil
}
