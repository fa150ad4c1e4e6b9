package prompts

import (
	"redraft/internal/core"
)

// Built-in prompt prose. These are the fallbacks when the database carries no
// active template for a stage; operators normally replace them with tuned
// stored templates.

const defaultTranslation = `你是一位资深科技编辑。请将下面的文章翻译成流畅自然的中文。

要求：
1. 忠实传达原文信息，不增删事实
2. 使用地道的中文表达，避免翻译腔
3. 专业术语保留英文原文并附中文解释
4. 保持原文的段落结构

原文：
{content}`

const defaultCreation = `你是一位专栏作者。请围绕主题「{topic}」写一篇原创文章。

要求：
1. 篇幅 {target_length}
2. 写作风格：{writing_style}
3. 自然融入关键词：{keywords}
4. 观点明确，例证具体，避免空话套话
5. {requirements}

直接输出正文，不要任何解释。`

const defaultOptimiseLight = `请对下面的中文文章做轻度润色。

要求：
1. 保持原有的风格和篇章结构
2. 替换明显生硬或重复的措辞
3. 在个别句子里加入口语化的过渡词
4. 不改变任何事实和数据

文章：
{content}`

const defaultOptimiseStandard = `请重写下面的中文文章，让它读起来更像一位真人作者的手笔。

要求：
1. 重组句式，长短句交错，避免整齐划一的结构
2. 加入作者的第一人称观点和评论
3. 用具体的比喻或身边的例子替换抽象表述
4. 保留全部事实和数据，不增删信息

文章：
{content}`

const defaultOptimiseHeavy = `请对下面的中文文章做深度改写。

要求：
1. 打乱原有段落组织，按你自己的叙述逻辑重新展开
2. 句子形态刻意不均匀：有短促的断句，也有带从句的长句
3. 加入主观色彩：个人判断、疑问、略带情绪的表达
4. 使用口语和俗语，偶尔用不那么"标准"的说法
5. 事实和数据必须原样保留

文章：
{content}`

const defaultAIReduction = `下面这篇文章此前已经过人工化处理，但仍被检测工具判定为机器生成。请针对检测特征再次改写。

要求：
1. 破坏规律性：打散对仗的句式、等长的段落、固定的连接词
2. 引入真人写作的"瑕疵"：插入语、补充说明、话锋一转
3. 删掉过于完备的总结句，让部分段落自然收尾
4. 保持所有事实、数据和结论不变

文章：
{content}`

// defaultTemplate returns the built-in prose for a stage. The optimisation
// stage varies by band; other stages ignore it.
func defaultTemplate(stage core.TemplateType, band Band) (string, error) {
	switch stage {
	case core.TemplateTranslation:
		return defaultTranslation, nil
	case core.TemplateCreation:
		return defaultCreation, nil
	case core.TemplateAIReduction:
		return defaultAIReduction, nil
	case core.TemplateOptimisation:
		switch band {
		case BandLight:
			return defaultOptimiseLight, nil
		case BandHeavy:
			return defaultOptimiseHeavy, nil
		default:
			return defaultOptimiseStandard, nil
		}
	}
	return "", core.Ef(core.KindValidation, "no default template for stage %q", stage)
}
