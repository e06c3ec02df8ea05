package catalog

import (
	"sort"
	"strings"
)

// FunctionDoc documents one query-language function.
type FunctionDoc struct {
	Name        string `json:"name"`
	Category    string `json:"category"`
	Syntax      string `json:"syntax"`
	Description string `json:"description"`
}

// functionReference is the built-in query language reference. Categories
// match the ones exposed through the get_query_reference tool.
var functionReference = []FunctionDoc{
	{"count", "aggregate", "count([field], [as=name], [distinct=true])", "Count events, optionally distinct values of a field"},
	{"avg", "aggregate", "avg(field, [as=name])", "Average of a numeric field"},
	{"sum", "aggregate", "sum(field, [as=name])", "Sum of a numeric field"},
	{"min", "aggregate", "min(field)", "Minimum value of a field"},
	{"max", "aggregate", "max(field)", "Maximum value of a field"},
	{"groupBy", "aggregate", "groupBy([field1, field2], function=[...])", "Group events by fields and aggregate within groups"},
	{"bucket", "aggregate", "bucket(span=1h, function=count())", "Time-bucketed aggregation"},
	{"percentile", "aggregate", "percentile(field, percentiles=[50, 90, 99])", "Percentiles of a numeric field"},
	{"stdDev", "aggregate", "stdDev(field)", "Standard deviation of a numeric field"},
	{"top", "aggregate", "top(field, [limit=10])", "Most frequent values of a field"},
	{"stats", "aggregate", "stats([function, ...])", "Run several aggregations at once"},
	{"timechart", "aggregate", "timechart([series=field], function=count())", "Aggregate into a time series"},

	{"in", "filtering", "in(field, values=[a, b, c])", "Match a field against a value list"},
	{"regex", "filtering", "regex(pattern, field=f)", "Filter by regular expression"},
	{"cidr", "filtering", "cidr(field, subnet=\"10.0.0.0/8\")", "Filter IP addresses by CIDR block"},
	{"test", "filtering", "test(expression)", "Filter by arbitrary expression"},
	{"exists", "filtering", "exists(field)", "Keep events where the field is present"},
	{"empty", "filtering", "empty(field)", "Keep events where the field is empty"},

	{"ioc:lookup", "security", "ioc:lookup(field=f, type=ip_address)", "Enrich events against CrowdStrike IOC intelligence"},
	{"ipLocation", "security", "ipLocation(field)", "Geolocate an IP address field"},
	{"hashMatch", "security", "hashMatch(hashes=[...], field=f)", "Match file hashes"},

	{"select", "data_manipulation", "select([field1, field2])", "Keep only the listed fields"},
	{"rename", "data_manipulation", "rename(field=old, as=new)", "Rename a field"},
	{"drop", "data_manipulation", "drop([field1, field2])", "Remove fields"},
	{"eval", "data_manipulation", "eval(target := expression)", "Compute a new field"},
	{"format", "data_manipulation", "format(\"%s-%s\", field=[a, b], as=c)", "Format fields into a string"},
	{"lower", "data_manipulation", "lower(field, as=f)", "Lowercase a field"},
	{"upper", "data_manipulation", "upper(field, as=f)", "Uppercase a field"},
	{"replace", "data_manipulation", "replace(regex, with=replacement, field=f)", "Regex replacement in a field"},
	{"split", "data_manipulation", "split(field, by=\",\")", "Split a field into an array"},
	{"concat", "data_manipulation", "concat([a, b], as=c)", "Concatenate fields"},

	{"sort", "sorting", "sort(field, [order=desc], [limit=n])", "Sort events"},
	{"head", "sorting", "head(n)", "First n events"},
	{"tail", "sorting", "tail(n)", "Last n events"},
	{"dedup", "sorting", "dedup(field)", "Drop duplicate values"},
	{"sample", "sorting", "sample(n)", "Random sample of events"},

	{"formatTime", "time", "formatTime(\"%Y-%m-%d\", field=@timestamp, as=day)", "Format a timestamp"},
	{"parseTimestamp", "time", "parseTimestamp(format, field=f)", "Parse a string into a timestamp"},
	{"now", "time", "now()", "Current time"},

	{"kvParse", "parsing", "kvParse([separator=\"=\"])", "Parse key=value pairs"},
	{"parseJson", "parsing", "parseJson(field=f)", "Parse a JSON field"},
	{"parseXml", "parsing", "parseXml(field=f)", "Parse an XML field"},
	{"parseCsv", "parsing", "parseCsv(columns=[a, b])", "Parse a CSV field"},

	{"join", "correlation", "join({subquery}, field=f, key=k)", "Join against a subquery"},
	{"selfJoin", "correlation", "selfJoin(field=f, where=[...])", "Correlate events sharing a key"},
	{"correlate", "correlation", "correlate(...)", "Multi-stream event correlation"},
}

// Functions returns reference entries filtered by exact name, category
// and/or a case-insensitive keyword over name and description.
func (c *Catalog) Functions(name, category, searchTerm string) []FunctionDoc {
	term := strings.ToLower(searchTerm)
	var out []FunctionDoc
	for _, doc := range functionReference {
		if name != "" && !strings.EqualFold(doc.Name, name) {
			continue
		}
		if category != "" && doc.Category != category {
			continue
		}
		if term != "" &&
			!strings.Contains(strings.ToLower(doc.Name), term) &&
			!strings.Contains(strings.ToLower(doc.Description), term) {
			continue
		}
		out = append(out, doc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// PipelineStep is one stage of the recommended query construction order.
type PipelineStep struct {
	Order       int    `json:"order"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// AntiPattern is a common inefficiency with its fix.
type AntiPattern struct {
	Bad    string `json:"bad"`
	Good   string `json:"good"`
	Reason string `json:"reason"`
}

// BestPractices bundles the query-writing guidance exposed to the LLM.
type BestPractices struct {
	Description      string         `json:"description"`
	PipelineSteps    []PipelineStep `json:"pipeline_steps"`
	OptimizationTips []string       `json:"optimization_tips"`
	AntiPatterns     []AntiPattern  `json:"anti_patterns"`
}

// QueryBestPractices returns the built-in guidance. Tag filters narrow the
// scanned data the most, so they always come first.
func QueryBestPractices() BestPractices {
	return BestPractices{
		Description: "Construct queries as a pipeline: narrow the data set as early as possible, transform in the middle, aggregate at the end.",
		PipelineSteps: []PipelineStep{
			{1, "tag filters", "Start with indexed #tag filters (e.g. #event_simpleName); they prune data before it is scanned"},
			{2, "field filters", "Follow with plain field=value filters to cut remaining events"},
			{3, "negative filters", "Exclude known-good noise (field!=value)"},
			{4, "regex filters", "Apply expensive regex matching only after cheaper filters"},
			{5, "transformations", "Parse, rename and compute fields on the reduced set"},
			{6, "joins", "Correlate with subqueries once both sides are small"},
			{7, "aggregations", "groupBy, count, bucket and friends"},
			{8, "output", "sort, head/tail, select and formatting last"},
		},
		OptimizationTips: []string{
			"Always begin with a #tag filter when one applies",
			"Prefer field=value over regex when matching literals",
			"Limit the time range: narrower start times scan less data",
			"Use head()/tail() to cap result size for interactive searches",
			"Quote string values containing spaces",
		},
		AntiPatterns: []AntiPattern{
			{
				Bad:    "ProcessRollup2 | #event_simpleName=ProcessRollup2",
				Good:   "#event_simpleName=ProcessRollup2",
				Reason: "free-text matching scans everything; the tag filter alone is indexed",
			},
			{
				Bad:    "regex(\"powershell\", field=FileName)",
				Good:   "FileName=/powershell/i or FileName=\"powershell.exe\"",
				Reason: "literal comparison is cheaper than a regex stage",
			},
			{
				Bad:    "groupBy(CommandLine)",
				Good:   "groupBy(FileName) or a filtered CommandLine",
				Reason: "grouping on high-cardinality fields explodes memory",
			},
		},
	}
}
