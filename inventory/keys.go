package inventory

import "github.com/unkn0wn-root/scopecache"

// Entity tags of cached queries.
const (
	TagBranches               = "branches"
	TagProductCount           = "productCount"
	TagOnboardingStatus       = "onboardingStatus"
	TagOnboardingProductCount = "onboarding-product-count"
	TagProducts               = "products"
	TagStockTransactions      = "stockTransactions"
	TagDashboardData          = "dashboardData"
)

// Tags lists every tag this package caches under.
var Tags = []string{
	TagBranches,
	TagProductCount,
	TagOnboardingStatus,
	TagOnboardingProductCount,
	TagProducts,
	TagStockTransactions,
	TagDashboardData,
}

func BranchesKey(user string) scopecache.Key {
	return scopecache.NewKey(TagBranches, user)
}

func OnboardingKey(user string) scopecache.Key {
	return scopecache.NewKey(TagOnboardingStatus, user)
}

func OnboardingProductCountKey(user string) scopecache.Key {
	return scopecache.NewKey(TagOnboardingProductCount, user)
}

// Branch-scoped keys. An empty branch yields a key that Query rejects with
// *scopecache.InvalidKeyError.

func ProductCountKey(user, branch string) scopecache.Key {
	return scopecache.NewKey(TagProductCount, user, branch)
}

func ProductsKey(user, branch string) scopecache.Key {
	return scopecache.NewKey(TagProducts, user, branch)
}

func StockTransactionsKey(user, branch string) scopecache.Key {
	return scopecache.NewKey(TagStockTransactions, user, branch)
}

func DashboardKey(user, branch string) scopecache.Key {
	return scopecache.NewKey(TagDashboardData, user, branch)
}

// MatchUser selects every key scoped to user.
func MatchUser(user string) scopecache.Matcher {
	return func(k scopecache.Key) bool {
		s := k.Scope()
		return len(s) > 0 && s[0] == user
	}
}

// MatchScope selects the keys of user carrying one of tags. A non-empty
// branch narrows branch-scoped keys to that branch; user-scoped keys still
// match.
func MatchScope(user, branch string, tags ...string) scopecache.Matcher {
	byTag := scopecache.MatchTags(tags...)
	return func(k scopecache.Key) bool {
		if !byTag(k) {
			return false
		}
		s := k.Scope()
		if len(s) == 0 || s[0] != user {
			return false
		}
		return branch == "" || len(s) < 2 || s[1] == branch
	}
}
