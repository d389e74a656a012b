package article

import "strings"

// MergeOptions 合并选项
type MergeOptions struct {
	// TrimChildren 为true时，更新片段中的子章节集合是权威的，
	// 现有节点中不在更新片段里的子章节会被删除
	TrimChildren bool

	// KeepContentOnEmpty 为true时，更新片段中正文为空的章节不会覆盖已有正文，
	// 用于只携带结构的大纲片段
	KeepContentOnEmpty bool

	// FollowOrder 为true时，合并后每一层的章节顺序以更新片段为准，
	// 不在更新片段中的已有章节排在后面
	FollowOrder bool
}

// Merge 将更新片段按标题逐层覆盖到已有文档上，原地修改并返回existing
// 标题只做精确匹配，大小写或空白不同的标题视为不同章节。
// 合并后调用方需要执行 Canonicalize 才能得到规范的文档。
func Merge(existing *Document, update *Sections, trimChildren bool) (*Document, error) {
	return MergeWith(existing, update, MergeOptions{TrimChildren: trimChildren})
}

// MergeWith 按指定选项合并
func MergeWith(existing *Document, update *Sections, opts MergeOptions) (*Document, error) {
	if existing == nil {
		return nil, ErrNilDocument
	}
	if update.Len() == 0 {
		return existing, nil
	}

	mergeLevel(existing.sections(), update, opts)
	return existing, nil
}

// mergeLevel 合并同一层级的章节
func mergeLevel(target *Sections, update *Sections, opts MergeOptions) {
	if opts.TrimChildren {
		for _, title := range target.Keys() {
			if _, ok := update.Get(title); !ok {
				target.Delete(title)
			}
		}
	}

	update.Each(func(title string, incoming *Section) {
		current, ok := target.Get(title)
		if !ok {
			target.Set(title, incoming.Clone())
			return
		}

		if !opts.KeepContentOnEmpty || strings.TrimSpace(incoming.Content) != "" {
			current.Content = incoming.Content
		}
		mergeLevel(current.children(), incoming.children(), opts)
	})

	if opts.FollowOrder {
		target.reorder(update.Keys())
	}
}

// InsertSection 在指定路径下插入或合并一个章节片段
// parent为空时插入到顶层；父路径不存在时返回错误
func InsertSection(doc *Document, parent []string, fragment *Section, trimChildren bool) error {
	if doc == nil {
		return ErrNilDocument
	}
	if fragment == nil {
		return nil
	}

	update := NewSections()
	update.Set(fragment.Title, fragment)

	siblings := doc.sections()
	if len(parent) > 0 {
		host, ok := doc.Find(parent...)
		if !ok {
			return NewArticleError(ErrCodeInvalidPath, "section not found: "+strings.Join(parent, " > "))
		}
		siblings = host.children()
	}

	mergeLevel(siblings, update, MergeOptions{})
	if trimChildren {
		// 只对片段自身的子树做裁剪，不影响其兄弟章节
		current, _ := siblings.Get(fragment.Title)
		mergeLevel(current.children(), fragment.children(), MergeOptions{TrimChildren: true})
	}
	return nil
}

// PruneEmpty 删除既没有正文也没有子章节的章节，自底向上进行
func PruneEmpty(doc *Document) *Document {
	if doc == nil {
		return nil
	}
	pruneLevel(doc.sections())
	return doc
}

func pruneLevel(m *Sections) {
	for _, title := range m.Keys() {
		s, _ := m.Get(title)
		pruneLevel(s.children())
		if strings.TrimSpace(s.Content) == "" && s.children().Len() == 0 {
			m.Delete(title)
		}
	}
}

// Canonicalize 合并后的后处理：删除空章节并规范化引用编号
// 返回引用编号的旧到新映射
func Canonicalize(doc *Document) map[int]int {
	PruneEmpty(doc)
	return NormalizeCitationsWithMap(doc)
}

// RemoveSection 按标题路径删除章节及其子树
func RemoveSection(doc *Document, path ...string) error {
	if doc == nil {
		return ErrNilDocument
	}
	if len(path) == 0 {
		return ErrEmptyPath
	}

	parent := doc.sections()
	if len(path) > 1 {
		host, ok := doc.Find(path[:len(path)-1]...)
		if !ok {
			return NewArticleError(ErrCodeInvalidPath, "section not found: "+strings.Join(path, " > "))
		}
		parent = host.children()
	}

	if !parent.Delete(path[len(path)-1]) {
		return NewArticleError(ErrCodeInvalidPath, "section not found: "+strings.Join(path, " > "))
	}
	return nil
}
