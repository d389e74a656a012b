package article

import (
	"encoding/json"
)

// Section 文章中的一个章节节点
// 层级不保存在节点上，由节点在树中的位置决定
type Section struct {
	Title    string    // 章节标题，在同一父节点下唯一
	Content  string    // 章节正文，段落之间以空行分隔
	Children *Sections // 子章节，保持插入顺序
}

// NewSection 创建新的章节
func NewSection(title, content string) *Section {
	return &Section{
		Title:    title,
		Content:  content,
		Children: NewSections(),
	}
}

// children 返回子章节集合，必要时惰性初始化
func (s *Section) children() *Sections {
	if s.Children == nil {
		s.Children = NewSections()
	}
	return s.Children
}

// Clone 深拷贝章节及其全部子树
func (s *Section) Clone() *Section {
	if s == nil {
		return nil
	}
	out := NewSection(s.Title, s.Content)
	if s.Children != nil {
		for _, key := range s.Children.keys {
			out.Children.Set(key, s.Children.items[key].Clone())
		}
	}
	return out
}

// Equal 比较两个章节的结构是否一致（标题、正文、子章节及顺序）
func (s *Section) Equal(other *Section) bool {
	if s == nil || other == nil {
		return s == other
	}
	if s.Title != other.Title || s.Content != other.Content {
		return false
	}
	return s.children().Equal(other.children())
}

// sectionJSON 章节的JSON表示，子章节以数组形式保存以保留顺序
type sectionJSON struct {
	Title    string     `json:"title"`
	Content  string     `json:"content"`
	Children []*Section `json:"children"`
}

// MarshalJSON 实现json.Marshaler接口
func (s *Section) MarshalJSON() ([]byte, error) {
	return json.Marshal(sectionJSON{
		Title:    s.Title,
		Content:  s.Content,
		Children: s.children().Values(),
	})
}

// UnmarshalJSON 实现json.Unmarshaler接口
func (s *Section) UnmarshalJSON(data []byte) error {
	var raw sectionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.Title = raw.Title
	s.Content = raw.Content
	s.Children = NewSections()
	for _, child := range raw.Children {
		if child == nil {
			continue
		}
		s.Children.Set(child.Title, child)
	}
	return nil
}

// Sections 按标题索引、保持插入顺序的子章节集合
type Sections struct {
	keys  []string
	items map[string]*Section
}

// NewSections 创建空的章节集合
func NewSections() *Sections {
	return &Sections{
		items: make(map[string]*Section),
	}
}

// Len 返回章节数量
func (m *Sections) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Get 根据标题获取章节
func (m *Sections) Get(title string) (*Section, bool) {
	if m == nil {
		return nil, false
	}
	s, ok := m.items[title]
	return s, ok
}

// Set 插入或覆盖章节
// 已存在的标题保留原来的位置，内容以最后一次写入为准；s为nil时写入空章节
func (m *Sections) Set(title string, s *Section) {
	if s == nil {
		s = NewSection(title, "")
	}
	m.init()
	s.Title = title
	if _, exists := m.items[title]; !exists {
		m.keys = append(m.keys, title)
	}
	m.items[title] = s
}

// InsertFront 将章节插入到最前面，已存在同名章节时先移除
func (m *Sections) InsertFront(title string, s *Section) {
	if s == nil {
		s = NewSection(title, "")
	}
	m.init()
	m.Delete(title)
	s.Title = title
	m.keys = append([]string{title}, m.keys...)
	m.items[title] = s
}

// init 零值集合在第一次写入时分配索引
func (m *Sections) init() {
	if m.items == nil {
		m.items = make(map[string]*Section)
	}
}

// reorder 按给定顺序重排已有标题，未列出的标题保持原有相对顺序排在后面
func (m *Sections) reorder(order []string) {
	keys := make([]string, 0, len(m.keys))
	placed := make(map[string]bool, len(order))
	for _, title := range order {
		if _, ok := m.items[title]; ok && !placed[title] {
			keys = append(keys, title)
			placed[title] = true
		}
	}
	for _, title := range m.keys {
		if !placed[title] {
			keys = append(keys, title)
		}
	}
	m.keys = keys
}

// Delete 删除章节，返回是否存在
func (m *Sections) Delete(title string) bool {
	if m == nil {
		return false
	}
	if _, exists := m.items[title]; !exists {
		return false
	}
	delete(m.items, title)
	for i, key := range m.keys {
		if key == title {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
	return true
}

// Keys 按插入顺序返回所有标题
func (m *Sections) Keys() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Values 按插入顺序返回所有章节
func (m *Sections) Values() []*Section {
	if m == nil {
		return []*Section{}
	}
	out := make([]*Section, 0, len(m.keys))
	for _, key := range m.keys {
		out = append(out, m.items[key])
	}
	return out
}

// Each 按插入顺序遍历章节
// 回调中不能修改当前集合
func (m *Sections) Each(fn func(title string, s *Section)) {
	if m == nil {
		return
	}
	for _, key := range m.keys {
		fn(key, m.items[key])
	}
}

// Equal 比较两个集合是否包含相同顺序、相同结构的章节
func (m *Sections) Equal(other *Sections) bool {
	if m.Len() != other.Len() {
		return false
	}
	for i, key := range m.Keys() {
		if other.keys[i] != key {
			return false
		}
		if !m.items[key].Equal(other.items[key]) {
			return false
		}
	}
	return true
}

// Document 文章文档，即标题为空的虚拟根节点
// 根节点本身不保存正文
type Document struct {
	Children *Sections // 顶层章节
}

// NewDocument 创建空文档
func NewDocument() *Document {
	return &Document{Children: NewSections()}
}

// NewDocumentFrom 使用已有的顶层章节集合创建文档
func NewDocumentFrom(children *Sections) *Document {
	if children == nil {
		children = NewSections()
	}
	return &Document{Children: children}
}

// sections 返回顶层章节集合，必要时惰性初始化
func (d *Document) sections() *Sections {
	if d.Children == nil {
		d.Children = NewSections()
	}
	return d.Children
}

// IsEmpty 文档是否没有任何章节
func (d *Document) IsEmpty() bool {
	return d == nil || d.Children.Len() == 0
}

// Find 按标题路径查找章节，例如 Find("History", "Early years")
func (d *Document) Find(path ...string) (*Section, bool) {
	if d == nil || len(path) == 0 {
		return nil, false
	}
	current := d.sections()
	var found *Section
	for _, title := range path {
		s, ok := current.Get(title)
		if !ok {
			return nil, false
		}
		found = s
		current = s.children()
	}
	return found, true
}

// Walk 先序遍历所有章节，path为从顶层到当前章节的标题路径
func (d *Document) Walk(fn func(path []string, s *Section)) {
	if d == nil {
		return
	}
	walkSections(d.sections(), nil, fn)
}

func walkSections(m *Sections, prefix []string, fn func(path []string, s *Section)) {
	m.Each(func(title string, s *Section) {
		path := append(append([]string{}, prefix...), title)
		fn(path, s)
		walkSections(s.children(), path, fn)
	})
}

// SectionCount 返回文档中章节的总数
func (d *Document) SectionCount() int {
	count := 0
	d.Walk(func(_ []string, _ *Section) {
		count++
	})
	return count
}

// Clone 深拷贝文档
func (d *Document) Clone() *Document {
	out := NewDocument()
	if d == nil {
		return out
	}
	d.sections().Each(func(title string, s *Section) {
		out.Children.Set(title, s.Clone())
	})
	return out
}

// Equal 比较两个文档的结构是否一致
func (d *Document) Equal(other *Document) bool {
	if d == nil || other == nil {
		return d.IsEmpty() && other.IsEmpty()
	}
	return d.sections().Equal(other.sections())
}

// MarshalJSON 文档序列化为顶层章节数组
func (d *Document) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.sections().Values())
}

// UnmarshalJSON 从顶层章节数组恢复文档
func (d *Document) UnmarshalJSON(data []byte) error {
	var list []*Section
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	d.Children = NewSections()
	for _, s := range list {
		if s == nil {
			continue
		}
		d.Children.Set(s.Title, s)
	}
	return nil
}
