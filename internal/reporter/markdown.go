package reporter

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/ppiankov/mongolens/internal/analyzer"
	"golang.org/x/text/language"
)

// Report languages.
const (
	LangEnglish     = "en"
	LangTraditional = "zh-TW"
)

var (
	langCodes   = []string{LangEnglish, LangTraditional}
	langMatcher = language.NewMatcher([]language.Tag{
		language.English,
		language.MustParse(LangTraditional),
	})
)

// MatchLang maps a BCP 47 tag to a supported report language.
// Unknown or unparseable tags fall back to English.
func MatchLang(tag string) string {
	t, err := language.Parse(tag)
	if err != nil {
		return LangEnglish
	}
	_, idx, conf := langMatcher.Match(t)
	if conf == language.No {
		return LangEnglish
	}
	return langCodes[idx]
}

type labels struct {
	title, generatedAt, version, db       string
	summaryHeader                         string
	unbounded, largeDocs, extremeNest     string
	schemaRec, schemaCols                 string
	indexRec, indexCols                   string
	healthy, healthyEv, healthyRec        string
	general, notes, errors                string
	uri, metricCols                       string
	reads, writes, rw                     string
	readsNote, writesNote, rwNote, notAvl string
}

var labelSets = map[string]labels{
	LangEnglish: {
		title:         "MongoDB Health Check Report",
		generatedAt:   "generatedAt",
		version:       "version",
		db:            "DB",
		summaryHeader: "| Collection | Docs | Storage (B) | TotalIndex (B) | LargestIndex | DocSize max/p95/avg (B) | Warnings |\n|---|---:|---:|---:|---|---|---|",
		unbounded:     "Unbounded arrays",
		largeDocs:     "Large documents",
		extremeNest:   "Extreme nesting",
		schemaRec:     "Schema Recommendations",
		schemaCols:    "| Issue | Evidence | Recommendation |\n|---|---|---|",
		indexRec:      "Index Recommendations",
		indexCols:     "| Category | Fields | Note |\n|---|---|---|",
		healthy:       "Healthy",
		healthyEv:     "No major schema risks observed in sample",
		healthyRec:    "Keep monitoring",
		general:       "General",
		notes:         "Notes",
		errors:        "Errors",
		uri:           "URI Recommendations",
		metricCols:    "| Metric | Value | Note |\n|---|---:|---|",
		reads:         "query + getmore",
		writes:        "insert + update + delete",
		rw:            "read/write ratio",
		readsNote:     "total reads observed (opcounters)",
		writesNote:    "total writes observed (opcounters)",
		rwNote:        ">=5 read-heavy; <=0.2 write-heavy",
		notAvl:        "unknown",
	},
	LangTraditional: {
		title:         "MongoDB 健康檢查報告",
		generatedAt:   "產生時間",
		version:       "版本",
		db:            "資料庫",
		summaryHeader: "| 集合 | 文件數 | 儲存位元組 | 索引總大小 | 最大索引 | 文件大小 最大/95分位/平均 | 警示 |\n|---|---:|---:|---:|---|---|---|",
		unbounded:     "無上界陣列",
		largeDocs:     "大型文件",
		extremeNest:   "過深巢狀",
		schemaRec:     "Schema 建議",
		schemaCols:    "| 問題 | 證據 | 建議 |\n|---|---|---|",
		indexRec:      "索引建議",
		indexCols:     "| 類別 | 欄位 | 說明 |\n|---|---|---|",
		healthy:       "健康",
		healthyEv:     "樣本未觀察到主要風險",
		healthyRec:    "持續監控",
		general:       "一般",
		notes:         "備註",
		errors:        "錯誤",
		uri:           "URI 連線建議",
		metricCols:    "| 指標 | 數值 | 說明 |\n|---|---:|---|",
		reads:         "查詢 + 取回",
		writes:        "插入 + 更新 + 刪除",
		rw:            "讀寫比",
		readsNote:     "觀測讀取總數（opcounters）",
		writesNote:    "觀測寫入總數（opcounters）",
		rwNote:        ">=5 讀多；<=0.2 寫多",
		notAvl:        "未知",
	},
}

func writeMarkdown(w io.Writer, report *Report, lang string) error {
	l := labelSets[MatchLang(lang)]
	var b strings.Builder

	version := report.Server.Version
	if version == "" {
		version = l.notAvl
	}
	fmt.Fprintf(&b, "# %s\n\n", l.title)
	fmt.Fprintf(&b, "- **%s**: %s\n", l.generatedAt, report.GeneratedAt.Format("2006-01-02T15:04:05Z07:00"))
	fmt.Fprintf(&b, "- **%s**: %s\n\n", l.version, version)

	if len(report.Errors) > 0 {
		fmt.Fprintf(&b, "## %s\n\n", l.errors)
		for _, e := range report.Errors {
			fmt.Fprintf(&b, "- %s\n", e)
		}
		b.WriteString("\n")
	}

	byDB := map[string][]*analyzer.CollectionResult{}
	for i := range report.Collections {
		r := &report.Collections[i]
		byDB[r.Database] = append(byDB[r.Database], r)
	}
	dbs := make([]string, 0, len(byDB))
	for db := range byDB {
		dbs = append(dbs, db)
	}
	slices.Sort(dbs)

	for _, db := range dbs {
		results := byDB[db]
		fmt.Fprintf(&b, "## %s: %s\n\n", l.db, db)
		b.WriteString(l.summaryHeader + "\n")
		for _, r := range results {
			summaryRow(&b, r, &l)
		}
		b.WriteString("\n")
		for _, r := range results {
			schemaSection(&b, r, &l)
			indexSection(&b, r, &l)
		}
	}

	uriSection(&b, report, &l)

	_, err := io.WriteString(w, b.String())
	return err
}

func summaryRow(b *strings.Builder, r *analyzer.CollectionResult, l *labels) {
	docs := "n/a"
	if r.Counts.Documents != nil {
		docs = fmt.Sprintf("%d", *r.Counts.Documents)
	}
	storage, totalIndex := "n/a", "n/a"
	if r.CollStats != nil {
		storage = fmt.Sprintf("%d", r.CollStats.StorageSize)
		totalIndex = fmt.Sprintf("%d", r.CollStats.TotalIndexSize)
	}
	largest := "-"
	if r.LargestIndex != nil {
		largest = fmt.Sprintf("%s (%d)", r.LargestIndex.Name, r.LargestIndex.Size)
	}
	size := r.Schema.DocSizeBytes

	var warnings []string
	if r.Flags.LargeDocuments {
		warnings = append(warnings, l.largeDocs)
	}
	if r.Flags.ExtremeNesting {
		warnings = append(warnings, l.extremeNest)
	}
	if len(r.Flags.UnboundedArrays) > 0 {
		warnings = append(warnings, l.unbounded+": "+strings.Join(r.Flags.UnboundedArrays, ","))
	}
	warn := "-"
	if len(warnings) > 0 {
		warn = strings.Join(warnings, "; ")
	}

	fmt.Fprintf(b, "| %s | %s | %s | %s | %s | %d/%d/%d | %s |\n",
		r.Collection, docs, storage, totalIndex, largest, size.Max, size.P95, int(size.Avg), warn)
}

func schemaSection(b *strings.Builder, r *analyzer.CollectionResult, l *labels) {
	fmt.Fprintf(b, "### %s · %s\n\n", r.Collection, l.schemaRec)
	if r.Skipped() {
		notesList(b, r, l)
		return
	}

	b.WriteString(l.schemaCols + "\n")
	s := &r.Schema
	rows := 0
	if r.Flags.LargeDocuments {
		fmt.Fprintf(b, "| Large document size | max=%dB, p95=%dB | Split/Reference/Bucket patterns |\n",
			s.DocSizeBytes.Max, s.DocSizeBytes.P95)
		rows++
	}
	if r.Flags.ExtremeNesting {
		fmt.Fprintf(b, "| Excessive nesting depth | maxDepth=%d | Flatten structure, embed hot fields only |\n", s.NestingDepth.Max)
		rows++
	}
	for _, path := range r.Flags.UnboundedArrays {
		st := s.ArrayStats[path]
		fmt.Fprintf(b, "| Potential unbounded array | %s: max=%d, p95=%d | Bucket/Subset/Outlier patterns |\n", path, st.Max, st.P95)
		rows++
	}
	if len(s.Polymorphism) > 0 {
		paths := make([]string, 0, len(s.Polymorphism))
		for p := range s.Polymorphism {
			paths = append(paths, p)
		}
		slices.Sort(paths)
		if len(paths) > 5 {
			paths = paths[:5]
		}
		fmt.Fprintf(b, "| Field type polymorphism | examples: %s | Normalize types or split by variant |\n", strings.Join(paths, ", "))
		rows++
	}
	if rows == 0 {
		fmt.Fprintf(b, "| %s | %s | %s |\n", l.healthy, l.healthyEv, l.healthyRec)
	}
	b.WriteString("\n")
	if len(r.Notes) > 0 {
		notesList(b, r, l)
	}
}

func indexSection(b *strings.Builder, r *analyzer.CollectionResult, l *labels) {
	if r.Skipped() {
		return
	}
	fmt.Fprintf(b, "### %s · %s\n\n", r.Collection, l.indexRec)
	b.WriteString(l.indexCols + "\n")
	ins := &r.IndexInsights
	rows := 0
	if len(ins.HighCardinalityCandidates) > 0 {
		fmt.Fprintf(b, "| High-cardinality candidates | %s | Consider selective leading index keys (if used in filters) |\n",
			strings.Join(ins.HighCardinalityCandidates, ", "))
		rows++
	}
	if len(ins.LowCardinalityWarnings) > 0 {
		fmt.Fprintf(b, "| Low-cardinality warnings | %s | Avoid as leading index position; place later in compound |\n",
			strings.Join(ins.LowCardinalityWarnings, ", "))
		rows++
	}
	if len(r.Flags.UnboundedArrays) > 0 {
		multikey := slices.Sorted(slices.Values(r.Flags.UnboundedArrays))
		fmt.Fprintf(b, "| Multikey caution | %s | Large arrays can cause index entry explosion |\n", strings.Join(multikey, ", "))
		rows++
	}
	if rows == 0 {
		fmt.Fprintf(b, "| %s | - | Validate with $indexStats and plans; maintain lean indexes |\n", l.general)
	}
	b.WriteString("\n")
}

func notesList(b *strings.Builder, r *analyzer.CollectionResult, l *labels) {
	fmt.Fprintf(b, "**%s**\n\n", l.notes)
	for _, n := range r.Notes {
		fmt.Fprintf(b, "- %s\n", n)
	}
	b.WriteString("\n")
}

func uriSection(b *strings.Builder, report *Report, l *labels) {
	ops := report.Server.Opcounters
	if ops == nil && len(report.URIRecommendations) == 0 {
		return
	}
	fmt.Fprintf(b, "## %s\n\n", l.uri)
	if ops != nil {
		b.WriteString(l.metricCols + "\n")
		fmt.Fprintf(b, "| %s | %d | %s |\n", l.reads, ops.Reads(), l.readsNote)
		fmt.Fprintf(b, "| %s | %d | %s |\n", l.writes, ops.Writes(), l.writesNote)
		fmt.Fprintf(b, "| %s | %.2f | %s |\n", l.rw, ops.Ratio(), l.rwNote)
		b.WriteString("\n")
	}
	for _, rec := range report.URIRecommendations {
		fmt.Fprintf(b, "- %s\n", rec)
	}
}
