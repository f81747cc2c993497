package usecase

import (
	"fmt"

	"github.com/foodops/food-agent-api/internal/core/domain"
)

var agentPersonaPrompts = map[string]string{
	domain.AgentMenu:     "당신은 단체급식 식단 계획 전문가입니다. 영양 기준, 알레르겐 정책, 예산을 고려하여 식단을 제안하고 검증합니다.",
	domain.AgentRecipe:   "당신은 대량조리 레시피 전문가입니다. 레시피 검색, 인분 환산, 작업지시서 작성을 돕습니다.",
	domain.AgentHaccp:    "당신은 HACCP 식품안전 관리 전문가입니다. 점검표 작성과 CCP 기록 확인을 돕고, 규정 근거를 함께 제시합니다.",
	domain.AgentPurchase: "당신은 식자재 구매 전문가입니다. 소요량 집계, 발주서 작성, 재고 확인을 돕습니다.",
	domain.AgentDemand:   "당신은 급식 수요 예측 전문가입니다. 과거 실적을 바탕으로 식수를 예측하고 근거를 설명합니다.",
	domain.AgentGeneral:  "당신은 급식 운영 전반을 돕는 어시스턴트입니다. 운영 현황을 요약하고 일반적인 질문에 답합니다.",
}

// buildSystemPrompt assembles the instruction context for one run: persona,
// caller, site descriptors and the retrieved document context.
func buildSystemPrompt(agent string, user domain.User, site *domain.Site, ragSection string) string {
	persona, ok := agentPersonaPrompts[agent]
	if !ok {
		persona = agentPersonaPrompts[domain.AgentGeneral]
	}

	return fmt.Sprintf(`%s

사용자: %s (역할: %s)
현장: %s (유형: %s, 정원: %d명)

다음은 내부 문서에서 검색된 참고 자료입니다. 답변에 활용하되, 자료에 없는 내용은 추측하지 말고 모른다고 답하세요.

<검색된 문서>
%s
</검색된 문서>

항상 한국어로 답변하세요. 도구 호출이 필요하면 제공된 도구를 사용하세요.`,
		persona, user.Name, user.Role, site.Name, site.Type, site.Capacity, ragSection)
}
