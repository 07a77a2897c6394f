package prom

import "sort"

// Label 默认标签的一个键值对
type Label struct {
	Name  string
	Value string
}

// sortedLabels 将默认标签 map 按键排序，确定追加到标签值末尾的位置顺序
func sortedLabels(m map[string]string) []Label {
	if len(m) == 0 {
		return nil
	}
	out := make([]Label, 0, len(m))
	for k, v := range m {
		out = append(out, Label{Name: k, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func labelNamesOf(labels []Label) []string {
	names := make([]string, len(labels))
	for i, l := range labels {
		names[i] = l.Name
	}
	return names
}
