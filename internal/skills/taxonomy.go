// Package skills 实现技能归一化、静态嵌入表与分级相似度匹配
package skills

import (
	"sort"
	"sync"
)

// EmbeddingDim 技能空间的向量维度
const EmbeddingDim = 13

// TextEmbeddingDim 自由文本空间的向量维度
const TextEmbeddingDim = 100

// Taxonomy 进程级只读技能表，构建后不再修改
type Taxonomy struct {
	aliases    map[string]string
	variations map[string]int
	groups     [][]string
	families   map[string][]string
	memberOf   map[string][]string
	denylist   map[[2]string]struct{}
	embeddings map[string][]float64
}

var (
	defaultTaxonomy     *Taxonomy
	defaultTaxonomyOnce sync.Once
)

// DefaultTaxonomy 返回内置技能表（只构建一次）
func DefaultTaxonomy() *Taxonomy {
	defaultTaxonomyOnce.Do(func() {
		defaultTaxonomy = buildTaxonomy(defaultAliases, defaultVariationGroups, defaultFamilies, defaultDenylist, defaultEmbeddings)
	})
	return defaultTaxonomy
}

func buildTaxonomy(aliases map[string]string, groups [][]string, families map[string][]string, deny [][2]string, embeddings map[string][]float64) *Taxonomy {
	t := &Taxonomy{
		aliases:    make(map[string]string, len(aliases)),
		variations: make(map[string]int),
		families:   make(map[string][]string, len(families)),
		memberOf:   make(map[string][]string),
		denylist:   make(map[[2]string]struct{}, len(deny)),
		embeddings: make(map[string][]float64, len(embeddings)),
	}
	for k, v := range aliases {
		t.aliases[k] = v
	}
	for i, g := range groups {
		members := make([]string, len(g))
		copy(members, g)
		t.groups = append(t.groups, members)
		for _, key := range g {
			t.variations[key] = i
		}
	}

	parents := make([]string, 0, len(families))
	for parent := range families {
		parents = append(parents, parent)
	}
	sort.Strings(parents)
	for _, parent := range parents {
		members := make([]string, len(families[parent]))
		copy(members, families[parent])
		t.families[parent] = members
		for _, m := range members {
			t.memberOf[m] = append(t.memberOf[m], parent)
		}
	}

	for _, pair := range deny {
		t.denylist[denyKey(pair[0], pair[1])] = struct{}{}
	}
	for k, v := range embeddings {
		vec := make([]float64, EmbeddingDim)
		copy(vec, v)
		t.embeddings[k] = vec
	}
	return t
}

func denyKey(a, b string) [2]string {
	if a > b {
		a, b = b, a
	}
	return [2]string{a, b}
}

// IsDenied 判断一对规范键是否在误匹配黑名单中
func (t *Taxonomy) IsDenied(a, b string) bool {
	_, ok := t.denylist[denyKey(a, b)]
	return ok
}

// SameVariation 判断两个规范键是否属于同一变体组
func (t *Taxonomy) SameVariation(a, b string) bool {
	ga, okA := t.variations[a]
	gb, okB := t.variations[b]
	return okA && okB && ga == gb
}

// IsKnown 规范键是否存在于静态嵌入表
func (t *Taxonomy) IsKnown(key string) bool {
	_, ok := t.embeddings[key]
	return ok
}

// Aliases 返回别名表的副本
func (t *Taxonomy) Aliases() map[string]string {
	out := make(map[string]string, len(t.aliases))
	for k, v := range t.aliases {
		out[k] = v
	}
	return out
}

// FamilyNames 返回所有技能族名称（已排序）
func (t *Taxonomy) FamilyNames() []string {
	names := make([]string, 0, len(t.families))
	for name := range t.families {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Family 返回技能族成员
func (t *Taxonomy) Family(name string) []string {
	members := t.families[name]
	out := make([]string, len(members))
	copy(out, members)
	return out
}

// FamiliesOf 返回规范键所属的技能族（父键本身也算作该族）
func (t *Taxonomy) FamiliesOf(key string) []string {
	var out []string
	if _, ok := t.families[key]; ok {
		out = append(out, key)
	}
	out = append(out, t.memberOf[key]...)
	return out
}

// InFamily 判断规范键是否属于指定技能族
func (t *Taxonomy) InFamily(key, family string) bool {
	for _, f := range t.FamiliesOf(key) {
		if f == family {
			return true
		}
	}
	return false
}

// Expand 查询扩展：返回词条本身及其技能族成员（仅用于检索，不参与严格匹配）
func (t *Taxonomy) Expand(term string) []string {
	key := t.Normalize(term)
	if key == "" {
		return nil
	}
	out := []string{key}
	seen := map[string]struct{}{key: {}}
	for _, m := range t.families[key] {
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}

// 别名目标必须本身是规范形式（不可再次命中别名表）
var defaultAliases = map[string]string{
	"c++":                    "cpp",
	"c ++":                   "cpp",
	"c plus plus":            "cpp",
	"cplusplus":              "cpp",
	"c/c++":                  "cpp",
	"c#":                     "csharp",
	"f#":                     "fsharp",
	".net":                   "dotnet",
	"asp.net":                "dotnet",
	"node.js":                "nodejs",
	"postgres":               "postgresql",
	"psql":                   "postgresql",
	"mongo":                  "mongodb",
	"k8s":                    "kubernetes",
	"golang":                 "go",
	"amazon web services":    "aws",
	"amazonwebservices":      "aws",
	"google cloud":           "gcp",
	"googlecloud":            "gcp",
	"google cloud platform":  "gcp",
	"googlecloudplatform":    "gcp",
	"restful":                "rest",
	"rest api":               "rest",
	"restapi":                "rest",
	"mssql":                  "sqlserver",
	"sql server":             "sqlserver",
	"microsoft sql server":   "sqlserver",
	"python3":                "python",
	"html5":                  "html",
	"css3":                   "css",
	"spring boot":            "springboot",
	"react native":           "reactnative",
	"machine learning":       "machinelearning",
	"data science":           "datascience",
	"ci/cd":                  "cicd",
	"continuous integration": "cicd",
}

var defaultVariationGroups = [][]string{
	{"javascript", "js", "ecmascript", "es6"},
	{"typescript", "ts"},
	{"python", "py"},
	{"springboot", "spring"},
	{"nodejs", "node"},
	{"react", "reactjs"},
	{"vue", "vuejs"},
	{"angular", "angularjs"},
	{"machinelearning", "ml"},
	{"git", "github", "gitlab"},
	{"mysql", "mariadb"},
	{"agile", "scrum", "kanban"},
}

var defaultFamilies = map[string][]string{
	"sql":         {"mysql", "postgresql", "sqlserver", "oracle", "mariadb", "sqlite"},
	"nosql":       {"mongodb", "redis", "cassandra", "dynamodb"},
	"cloud":       {"aws", "azure", "gcp"},
	"frontend":    {"react", "angular", "vue", "html", "css", "javascript", "typescript"},
	"backend":     {"nodejs", "springboot", "django", "flask", "express", "java", "python", "go", "php", "dotnet"},
	"devops":      {"docker", "kubernetes", "terraform", "cicd", "jenkins", "ansible"},
	"mobile":      {"android", "ios", "swift", "kotlin", "flutter", "reactnative"},
	"datascience": {"python", "pandas", "machinelearning", "tensorflow", "pytorch"},
}

var defaultDenylist = [][2]string{
	{"html", "ml"},
	{"java", "javascript"},
	{"c", "cpp"},
	{"go", "golang"},
	{"sql", "nosql"},
	{"rust", "trust"},
}

// 维度顺序: frontend backend database cloud devops mobile data/ml systems scripting markup jvm js-eco microsoft
var defaultEmbeddings = map[string][]float64{
	"javascript":      {.6, .3, 0, 0, 0, 0, 0, 0, .5, 0, 0, 1.0, 0},
	"typescript":      {.6, .4, 0, 0, 0, 0, 0, 0, .3, 0, 0, 1.0, 0},
	"react":           {1.0, 0, 0, 0, 0, 0, 0, 0, 0, .5, 0, .7, 0},
	"reactnative":     {.9, 0, 0, 0, 0, .7, 0, 0, 0, .2, 0, .8, 0},
	"angular":         {1.0, 0, 0, 0, 0, 0, 0, 0, 0, .4, 0, .6, 0},
	"vue":             {1.0, 0, 0, 0, 0, 0, 0, 0, 0, .5, 0, .6, 0},
	"html":            {.6, 0, 0, 0, 0, 0, 0, 0, 0, 1.0, 0, 0, 0},
	"css":             {.7, 0, 0, 0, 0, 0, 0, 0, 0, 1.0, 0, 0, 0},
	"nodejs":          {0, .9, 0, 0, 0, 0, 0, 0, .3, 0, 0, 1.0, 0},
	"express":         {0, 1.0, 0, 0, 0, 0, 0, 0, 0, 0, 0, .8, 0},
	"java":            {0, .8, 0, 0, 0, .2, 0, .2, 0, 0, 1.0, 0, 0},
	"kotlin":          {0, .5, 0, 0, 0, .7, 0, 0, 0, 0, 1.0, 0, 0},
	"springboot":      {0, 1.0, .2, 0, 0, 0, 0, 0, 0, 0, .9, 0, 0},
	"python":          {0, .6, 0, 0, 0, 0, .7, 0, 1.0, 0, 0, 0, 0},
	"django":          {0, 1.0, .3, 0, 0, 0, 0, 0, .7, 0, 0, 0, 0},
	"flask":           {0, 1.0, 0, 0, 0, 0, 0, 0, .7, 0, 0, 0, 0},
	"go":              {0, .9, 0, .3, .4, 0, 0, .6, 0, 0, 0, 0, 0},
	"rust":            {0, .4, 0, 0, 0, 0, 0, 1.0, 0, 0, 0, 0, 0},
	"cpp":             {0, .3, 0, 0, 0, 0, .2, 1.0, 0, 0, 0, 0, 0},
	"c":               {0, .1, 0, 0, 0, 0, 0, 1.0, 0, 0, 0, 0, 0},
	"csharp":          {0, .7, 0, 0, 0, 0, 0, .2, 0, 0, 0, 0, 1.0},
	"dotnet":          {0, .8, 0, .1, 0, 0, 0, 0, 0, 0, 0, 0, 1.0},
	"php":             {0, .9, .2, 0, 0, 0, 0, 0, .6, .2, 0, 0, 0},
	"ruby":            {0, .8, 0, 0, 0, 0, 0, 0, .9, 0, 0, 0, 0},
	"swift":           {0, 0, 0, 0, 0, 1.0, 0, .4, 0, 0, 0, 0, 0},
	"flutter":         {.4, 0, 0, 0, 0, 1.0, 0, 0, 0, .2, 0, 0, 0},
	"android":         {0, 0, 0, 0, 0, 1.0, 0, 0, 0, 0, .6, 0, 0},
	"ios":             {0, 0, 0, 0, 0, 1.0, 0, .3, 0, 0, 0, 0, 0},
	"sql":             {0, .3, 1.0, 0, 0, 0, .2, 0, 0, 0, 0, 0, 0},
	"mysql":           {0, .3, 1.0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
	"postgresql":      {0, .3, 1.0, 0, 0, 0, .1, 0, 0, 0, 0, 0, 0},
	"mongodb":         {0, .4, .7, 0, 0, 0, 0, 0, 0, 0, 0, .6, 0},
	"nosql":           {0, .3, .7, 0, 0, 0, 0, 0, 0, 0, 0, .7, 0},
	"redis":           {0, .6, .6, .4, .3, 0, 0, 0, 0, 0, 0, 0, 0},
	"oracle":          {0, .3, 1.0, 0, 0, 0, 0, 0, 0, 0, .3, 0, .2},
	"sqlserver":       {0, .3, 1.0, 0, 0, 0, 0, 0, 0, 0, 0, 0, .6},
	"aws":             {0, .3, 0, 1.0, .4, 0, 0, 0, 0, 0, 0, 0, 0},
	"azure":           {0, .3, 0, .7, .3, 0, 0, 0, 0, 0, 0, 0, .8},
	"gcp":             {0, .3, 0, .6, .3, 0, .7, 0, 0, 0, 0, 0, 0},
	"docker":          {0, .3, 0, .5, 1.0, 0, 0, .2, 0, 0, 0, 0, 0},
	"kubernetes":      {0, .2, 0, .7, 1.0, 0, 0, 0, 0, 0, 0, 0, 0},
	"terraform":       {0, 0, 0, 1.0, .7, 0, 0, 0, .2, 0, 0, 0, 0},
	"cicd":            {0, .2, 0, .3, 1.0, 0, 0, 0, .3, 0, 0, 0, 0},
	"linux":           {0, .2, 0, .3, .5, 0, 0, 1.0, .3, 0, 0, 0, 0},
	"git":             {0, .3, 0, 0, .8, 0, 0, 0, .3, 0, 0, 0, 0},
	"machinelearning": {0, 0, 0, 0, 0, 0, 1.0, 0, .5, 0, 0, 0, 0},
	"ml":              {0, 0, 0, 0, 0, 0, 1.0, 0, .5, 0, 0, 0, 0},
	"datascience":     {0, 0, .3, 0, 0, 0, 1.0, 0, .6, 0, 0, 0, 0},
	"tensorflow":      {0, 0, 0, 0, 0, 0, 1.0, .2, .6, 0, 0, 0, 0},
	"pytorch":         {0, 0, 0, 0, 0, 0, 1.0, .1, .7, 0, 0, 0, 0},
	"pandas":          {0, 0, .3, 0, 0, 0, .9, 0, .8, 0, 0, 0, 0},
	"rest":            {.2, 1.0, 0, 0, 0, 0, 0, 0, 0, 0, 0, .2, 0},
	"api":             {.2, 1.0, 0, 0, 0, 0, 0, 0, 0, 0, 0, .2, 0},
	"graphql":         {.4, .9, .2, 0, 0, 0, 0, 0, 0, 0, 0, .4, 0},
}
