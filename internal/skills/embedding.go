package skills

import (
	"math"
	"unicode/utf16"
)

// Embed 返回技能的向量表示：静态表命中则返回表中向量的副本，否则返回哈希派生的 one-hot 向量
func (t *Taxonomy) Embed(raw string) []float64 {
	key := t.Normalize(raw)
	if vec, ok := t.embeddings[key]; ok {
		out := make([]float64, len(vec))
		copy(out, vec)
		return out
	}
	return HashEmbedding(key, EmbeddingDim)
}

// EmbedText 自由文本空间的哈希向量，维度由调用方决定
func (t *Taxonomy) EmbedText(raw string, dim int) []float64 {
	return HashEmbedding(t.Normalize(raw), dim)
}

// HashEmbedding 对 key 计算 32 位滚动哈希 (h = h*31 + c，溢出回绕)，在 abs(h) % dim 处置 1
func HashEmbedding(key string, dim int) []float64 {
	if dim <= 0 {
		return nil
	}
	vec := make([]float64, dim)
	vec[HashIndex(key, dim)] = 1.0
	return vec
}

// HashIndex 返回 key 在 dim 维空间中的哈希下标
func HashIndex(key string, dim int) int {
	var h int32
	for _, c := range utf16.Encode([]rune(key)) {
		h = h*31 + int32(c)
	}
	abs := int64(h)
	if abs < 0 {
		abs = -abs
	}
	return int(abs % int64(dim))
}

// CosineSimilarity 余弦相似度；长度不等时短向量补零，任一向量范数为 0 时返回 0
func CosineSimilarity(a, b []float64) float64 {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		var x, y float64
		if i < len(a) {
			x = a[i]
		}
		if i < len(b) {
			y = b[i]
		}
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	// 浮点误差可能略超出 [-1, 1]
	return math.Max(-1, math.Min(1, sim))
}
