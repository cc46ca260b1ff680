package herbmatch

// herbPhraseTable maps traditional herb names from the classical corpus
// to the simplified spellings SymMap uses. Whole-name entries run before
// any per-rune conversion so renames that are not character-by-character,
// like 黃耆 to 黄芪 or 桂心 to 桂, stay intact.
var herbPhraseTable = map[string]string{
	"當歸": "当归", "黃芩": "黄芩", "黃連": "黄连", "黃柏": "黄柏",
	"黃精": "黄精", "黃耆": "黄芪", "麥門冬": "麦门冬", "天門冬": "天门冬",
	"山藥": "山药", "乾薑": "干姜", "龍膽": "龙胆", "龍腦": "龙脑",
	"龍骨": "龙骨", "龍齒": "龙齿", "龍眼肉": "龙眼肉", "丹參": "丹参",
	"澤瀉": "泽泻", "肉蓯蓉": "肉苁蓉", "麝香": "麝香", "鬱金": "郁金",
	"厚朴": "厚朴", "貝母": "贝母", "細辛": "细辛", "遠志": "远志",
	"連翹": "连翘", "陳皮": "陈皮", "穀精草": "谷精草", "續斷": "续断",
	"豬苓": "猪苓", "麻黃": "麻黄", "薑黃": "姜黄", "蒼朮": "苍术",
	"術": "术", "熟地黃": "熟地黄", "熟地黄": "熟地黄", "生地黃": "生地黄",
	"枸杞子": "枸杞子", "構紙": "构纸", "萎蕤": "萎蕤", "釀": "酿",
	"鱉甲": "鳖甲", "龜板": "龟板", "酸棗仁": "酸枣仁", "柏子仁": "柏子仁",
	"紫蘇": "紫苏", "紫蘇子": "紫苏子", "紫蘇葉": "紫苏叶", "紫苑": "紫菀",
	"紫石英": "紫石英", "絲瓜絡": "丝瓜络", "络石藤": "络石藤", "赤芍": "赤芍",
	"赤小豆": "赤小豆", "赤茯苓": "赤茯苓", "赤石脂": "赤石脂", "白蘞": "白蔹",
	"白芍": "白芍", "白朮": "白术", "梔子": "栀子", "枳殼": "枳壳",
	"桔梗": "桔梗", "羌活": "羌活", "羚羊角": "羚羊角", "蜀椒": "蜀椒",
	"大黃": "大黄", "大棗": "大枣", "天竺黃": "天竺黄", "玄參": "玄参",
	"沙參": "沙参", "桑白皮": "桑白皮", "桂心": "桂", "杏仁": "杏仁",
	"生薑": "生姜", "乾地黃": "干地黄", "知母": "知母", "芒硝": "芒硝",
	"木通": "木通", "石膏": "石膏", "升麻": "升麻", "前胡": "前胡",
	"附子": "附子", "川芎": "川芎", "牛黃": "牛黄", "犀角": "犀角",
	"琥珀": "琥珀", "雄黃": "雄黄", "鐵粉": "铁粉", "鉛霜": "铅霜",
	"虎睛": "虎睛", "金箔": "金箔", "銀箔": "银箔", "硃砂": "朱砂",
	"茯苓": "茯苓", "半夏": "半夏", "柴胡": "柴胡", "牡丹皮": "牡丹皮",
	"木香": "木香", "地骨皮": "地骨皮", "沉香": "沉香", "葛根": "葛根",
	"肉桂": "肉桂", "杜仲": "杜仲", "山茱萸": "山茱萸", "牛膝": "牛膝",
	"秦艽": "秦艽", "五味子": "五味子", "珍珠": "珍珠",
}

// simplifiedRunes converts the traditional characters that occur in herb
// names the phrase table does not cover.
var simplifiedRunes = map[rune]rune{
	'當': '当', '黃': '黄', '門': '门', '藥': '药', '薑': '姜',
	'龍': '龙', '參': '参', '澤': '泽', '瀉': '泻', '蓯': '苁',
	'貝': '贝', '細': '细', '遠': '远', '連': '连', '翹': '翘',
	'陳': '陈', '穀': '谷', '續': '续', '斷': '断', '豬': '猪',
	'麻': '麻', '蒼': '苍', '術': '术', '構': '构', '釀': '酿',
	'鱉': '鳖', '龜': '龟', '棗': '枣', '蘇': '苏', '葉': '叶',
	'苑': '菀', '絲': '丝', '絡': '络', '蘞': '蔹', '梔': '栀',
	'殼': '壳', '羚': '羚', '竺': '竺', '鐵': '铁', '鉛': '铅',
	'硃': '朱', '銀': '银', '麝': '麝', '鬱': '郁', '於': '于',
}

// ToSimplified converts a traditional herb name to its simplified form.
// A whole-name phrase table entry wins; otherwise each traditional
// character is converted in place.
func ToSimplified(name string) string {
	if simp, ok := herbPhraseTable[name]; ok {
		return simp
	}

	runes := []rune(name)
	for i, r := range runes {
		if simp, ok := simplifiedRunes[r]; ok {
			runes[i] = simp
		}
	}
	return string(runes)
}
